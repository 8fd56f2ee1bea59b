package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Normalize lowercases text, replaces every non-alphanumeric rune with a
// space, and collapses runs of whitespace. Two texts differing only in
// punctuation or casing normalize to the same string.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ContentID is the stable article id for a (url, text) pair.
func ContentID(url, text string) string {
	sum := sha256.Sum256([]byte(url + text))
	return hex.EncodeToString(sum[:])
}

// NormalizedID is the formatting-insensitive article id: the url is
// lowercased and the text normalized before hashing.
func NormalizedID(url, text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(url) + Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// AnonUserID derives a short anonymous identifier from a browser
// fingerprint, so feedback records never store the raw value.
func AnonUserID(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])[:16]
}
