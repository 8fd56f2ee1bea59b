package corroborate

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"veridex/internal/extract"
)

const (
	maxReformulations = 6
	minReformulation  = 5
	maxSummaryLen     = 150
)

var quotedString = regexp.MustCompile(`"([^"]{6,})"`)

// Reformulate asks the model for alternative phrasings of a claim to
// widen search recall. Falls back to extracting quoted strings when the
// response is not a clean JSON array, and to the claim itself when
// nothing usable comes back.
func (e *Engine) Reformulate(ctx context.Context, claim string) []string {
	prompt := "Rewrite the following claim as 3 to 6 short web search queries that " +
		"would surface reporting about it. Respond with a JSON array of strings and " +
		"nothing else.\n\nClaim: " + claim

	resp, err := e.reasoner.AskStructured(ctx, prompt)
	if err != nil {
		e.logger.Debug("reformulation call failed", zap.Error(err))
	}

	var out []string
	for _, item := range resp.Array() {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if len(s) > minReformulation {
				out = append(out, s)
			}
		}
	}

	// salvage quoted strings from arbitrary text
	if len(out) == 0 && resp.RawText != "" {
		for _, m := range quotedString.FindAllStringSubmatch(resp.RawText, -1) {
			out = append(out, m[1])
		}
	}

	if len(out) == 0 {
		out = []string{claim}
	}
	if len(out) > maxReformulations {
		out = out[:maxReformulations]
	}
	return out
}

// SummarizeClaim compresses a claim into a single terse search query.
// Responses that look like error text or leaked JSON are discarded in
// favor of a prefix of the claim itself.
func (e *Engine) SummarizeClaim(ctx context.Context, claim string) string {
	prompt := "Summarize the following claim as one short web search query, " +
		"at most 12 words, plain text only.\n\nClaim: " + claim

	summary, err := e.reasoner.AskText(ctx, prompt)
	if err != nil {
		summary = ""
	}
	summary = strings.TrimSpace(summary)

	if len(summary) < 10 || strings.Contains(summary, "{") || strings.Contains(strings.ToLower(summary), "error") {
		summary = extract.TruncateRunes(claim, 120)
	}
	return extract.TruncateRunes(summary, maxSummaryLen)
}

// MergedQuery appends up to four keywords from the reformulations to
// the summary, skipping words the summary already contains
func MergedQuery(summary string, reformulations []string) string {
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(summary)) {
		seen[w] = true
	}

	var extras []string
	for _, ref := range reformulations {
		for _, w := range strings.Fields(ref) {
			lower := strings.ToLower(w)
			if len(lower) < 4 || seen[lower] {
				continue
			}
			seen[lower] = true
			extras = append(extras, w)
			if len(extras) >= 4 {
				return summary + " " + strings.Join(extras, " ")
			}
		}
	}

	if len(extras) == 0 {
		return summary
	}
	return summary + " " + strings.Join(extras, " ")
}
