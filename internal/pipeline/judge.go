package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"veridex/internal/model"
)

const contextWindow = 300

// judgeClaim asks the reasoning model for a standalone verdict on one
// claim, giving it the claim's surrounding text and the gathered
// evidence. Malformed output degrades to Unknown with low confidence.
func (a *Analyzer) judgeClaim(ctx context.Context, claim model.Claim, fullText string, corr model.Corroboration) (model.ReasonerOpinion, string) {
	var sb strings.Builder
	sb.WriteString("Assess the veracity of this claim.\n")
	sb.WriteString("Claim: ")
	sb.WriteString(claim.Text)
	sb.WriteString("\n\nSurrounding context:\n")
	sb.WriteString(localContext(fullText, claim.Text))

	if len(corr.Evidence) > 0 {
		sb.WriteString("\n\nWeb evidence:\n")
		for i, ev := range corr.Evidence {
			fmt.Fprintf(&sb, "%d. [%s, trust %.2f] %s\n", i+1, ev.Relevance, ev.DomainScore, ev.Snippet)
		}
	}

	sb.WriteString("\nIf the claim is not a verifiable factual statement (opinion, " +
		"question, fiction), answer \"Not Applicable\" with confidence 100.\n" +
		"Respond with strict JSON only:\n" +
		`{"prediction":"Real|Fake|Misleading|Unknown|Not Applicable","confidence":0-100,"explanation":"one sentence"}`)

	resp, err := a.reasoner.AskStructured(ctx, sb.String())
	if err != nil {
		a.logger.Warn("claim judgement failed", zap.Error(err))
		return model.ReasonerOpinion{Prediction: model.LabelUnknown, Confidence: 50}, ""
	}

	opinion := model.ReasonerOpinion{
		Prediction: parseLabel(resp.Str("prediction")),
		Confidence: clampConf(resp.Int("confidence", 50)),
	}
	return opinion, resp.Str("explanation")
}

// localContext returns a window of the full text around the claim, or a
// prefix when the claim is not found verbatim
func localContext(fullText, claim string) string {
	idx := strings.Index(fullText, claim)
	if idx < 0 {
		return capText(fullText, contextWindow*2)
	}

	start := idx - contextWindow
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(fullText[start]) {
		start--
	}
	end := idx + len(claim) + contextWindow
	if end > len(fullText) {
		end = len(fullText)
	}
	for end < len(fullText) && !utf8.RuneStart(fullText[end]) {
		end++
	}
	return fullText[start:end]
}

func parseLabel(s string) model.Label {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "real", "true":
		return model.LabelReal
	case "fake", "false":
		return model.LabelFake
	case "misleading":
		return model.LabelMisleading
	case "not applicable", "n/a":
		return model.LabelNotApplicable
	default:
		return model.LabelUnknown
	}
}

func clampConf(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
