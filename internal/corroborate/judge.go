package corroborate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"veridex/internal/model"
)

type judgement struct {
	relevance  model.Relevance
	confidence int
}

// judgeEvidence evaluates every candidate snippet against the claim in
// a single model call. The prompt asks for strict JSON so the defensive
// parser can always produce a map, and instructs the model to let more
// recent reporting supersede older reporting when the two conflict.
func (e *Engine) judgeEvidence(ctx context.Context, claim string, candidates []candidate) map[int]judgement {
	out := make(map[int]judgement)
	if len(candidates) == 0 {
		return out
	}

	var sb strings.Builder
	sb.WriteString("You are verifying a claim against search results.\n")
	sb.WriteString("Claim: ")
	sb.WriteString(claim)
	sb.WriteString("\n\nEvidence:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. [%s] %s: %s\n", i+1, c.domain, c.result.Title, c.snippet)
	}
	sb.WriteString("\nFor each evidence item decide whether it supports, contradicts, " +
		"or is unrelated to the claim. When items conflict, prefer the more recent " +
		"reporting; dated statements superseded by newer events do not contradict them.\n" +
		"Respond with strict JSON only, no prose:\n" +
		`{"evaluated":[{"index":1,"relevance":"supports|contradicts|unrelated","confidence":0-100}]}`)

	resp, err := e.reasoner.AskStructured(ctx, sb.String())
	if err != nil {
		e.logger.Debug("evidence judgement failed", zap.Error(err))
		return out
	}

	evaluated, _ := resp.Object()["evaluated"].([]any)
	for _, raw := range evaluated {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		idx := intField(item, "index") - 1
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		out[idx] = judgement{
			relevance:  parseRelevance(item["relevance"]),
			confidence: clampConfidence(intField(item, "confidence")),
		}
	}
	return out
}

func parseRelevance(v any) model.Relevance {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supports", "support":
		return model.RelevanceSupports
	case "contradicts", "contradict":
		return model.RelevanceContradicts
	default:
		return model.RelevanceUnrelated
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
