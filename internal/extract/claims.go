// Package extract turns raw input text into checkable claims and the
// derived identifiers the cache layer keys on.
package extract

import (
	"strings"
	"unicode"

	"veridex/internal/model"
)

const (
	// ClaimMinLen is the minimum sentence length considered a claim
	ClaimMinLen = 30
	// MaxClaims caps how many claims one input can produce
	MaxClaims = 3
	// pseudoClaimLen bounds the fallback claim when no sentence qualifies
	pseudoClaimLen = 500
)

// SplitClaims repairs pasted-together spacing, splits the text on
// sentence boundaries, keeps sentences of at least ClaimMinLen
// characters, and caps the result at MaxClaims. If no sentence
// qualifies the head of the text becomes a single pseudo-claim, so
// non-empty input never yields an empty list. Output order matches
// input order.
func SplitClaims(text string) []model.Claim {
	text = RepairSpacing(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	var claims []model.Claim
	for i, sentence := range SplitSentences(text) {
		if len(sentence) < ClaimMinLen {
			continue
		}
		claims = append(claims, model.Claim{Text: sentence, Sentence: i})
		if len(claims) == MaxClaims {
			break
		}
	}

	if len(claims) == 0 {
		claims = []model.Claim{{Text: TruncateRunes(text, pseudoClaimLen)}}
	}

	return claims
}

// SplitSentences splits text on ., ! and ? followed by whitespace.
// Newlines are treated as spaces first so wrapped text splits cleanly.
func SplitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Only break when followed by whitespace or end of text,
			// which avoids splitting decimals and most abbreviations.
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// FactCheckQuery picks the single sentence best suited as a fact-check
// search query: the longest one with 5-20 words. Falls back to the first
// 100 characters when none qualifies.
func FactCheckQuery(text string) string {
	text = strings.TrimSpace(text)

	var best string
	for _, sentence := range SplitSentences(text) {
		words := len(strings.Fields(sentence))
		if words < 5 || words > 20 {
			continue
		}
		if len(sentence) > len(best) {
			best = sentence
		}
	}

	if best == "" {
		return strings.TrimSpace(TruncateRunes(text, 100))
	}
	return best
}

// TruncateRunes caps a string at max runes, never splitting a
// multi-byte character
func TruncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// RepairSpacing reinserts the space lost when sentences are pasted together
// ("end.Start" -> "end. Start"), a common artifact of copied web text.
func RepairSpacing(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' && i > 0 && i+1 < len(runes) {
			if unicode.IsLetter(runes[i-1]) && unicode.IsUpper(runes[i+1]) {
				b.WriteRune(' ')
			}
		}
	}
	return b.String()
}
