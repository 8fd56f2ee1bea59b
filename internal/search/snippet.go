package search

import (
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"
)

// CleanSnippet strips markup and entities from a search result snippet.
// Custom Search snippets routinely carry <b> highlights and entity-encoded
// punctuation; evidence scoring wants plain text.
func CleanSnippet(snippet string) string {
	snippet = stdhtml.UnescapeString(snippet)

	if !strings.ContainsRune(snippet, '<') {
		return strings.TrimSpace(snippet)
	}

	doc, err := html.Parse(strings.NewReader(snippet))
	if err != nil {
		return strings.TrimSpace(snippet)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if buf.Len() > 0 {
					buf.WriteString(" ")
				}
				buf.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return buf.String()
}
