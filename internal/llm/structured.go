package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// StructuredResponse is the defensively parsed form of a model completion.
// Parsed is one of: map[string]any, []any, string, or nil — the generative
// side of the contract is loose, so callers go through the accessors.
type StructuredResponse struct {
	Parsed  any    `json:"parsed"`
	RawText string `json:"raw_text"`
}

// Object returns the parsed value as an object, or an empty map.
func (r StructuredResponse) Object() map[string]any {
	if m, ok := r.Parsed.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Array returns the parsed value as an array, or nil.
func (r StructuredResponse) Array() []any {
	if a, ok := r.Parsed.([]any); ok {
		return a
	}
	return nil
}

// String fields of loosely typed objects come back as any; Str pulls a
// string by key, empty when absent or differently typed.
func (r StructuredResponse) Str(key string) string {
	if v, ok := r.Object()[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int pulls a numeric field by key with a default.
func (r StructuredResponse) Int(key string, def int) int {
	if v, ok := r.Object()[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case string:
			// Models occasionally quote numbers
			var f float64
			if err := json.Unmarshal([]byte(n), &f); err == nil {
				return int(f)
			}
		}
	}
	return def
}

var bracePattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseStructured parses model output defensively: direct JSON parse, then
// brace extraction for JSON embedded in prose or code fences, then an empty
// object. It never fails.
func ParseStructured(text string) StructuredResponse {
	text = strings.TrimSpace(text)

	cleaned := stripCodeFence(text)

	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		return StructuredResponse{Parsed: parsed, RawText: text}
	}

	if match := bracePattern.FindString(cleaned); match != "" {
		if err := json.Unmarshal([]byte(match), &parsed); err == nil {
			return StructuredResponse{Parsed: parsed, RawText: text}
		}
	}

	return StructuredResponse{Parsed: map[string]any{}, RawText: text}
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Reasoner wraps a Provider with the structured-output and retry contract
// the pipeline depends on.
type Reasoner struct {
	provider Provider
	retry    RetryPolicy
}

// NewReasoner creates a Reasoner over the given provider.
func NewReasoner(provider Provider, retry RetryPolicy) *Reasoner {
	return &Reasoner{provider: provider, retry: retry}
}

// Provider exposes the underlying backend (used by availability checks).
func (r *Reasoner) Provider() Provider {
	return r.provider
}

// AskStructured sends a prompt and defensively parses the completion.
// Transport failures are retried with backoff; after the final attempt the
// error is returned alongside an empty, well-formed response so callers can
// degrade rather than branch on panics.
func (r *Reasoner) AskStructured(ctx context.Context, prompt string) (StructuredResponse, error) {
	var raw string

	err := r.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = r.provider.Complete(ctx, CompletionRequest{Prompt: prompt})
		return err
	})
	if err != nil {
		return StructuredResponse{Parsed: map[string]any{}}, err
	}

	return ParseStructured(raw), nil
}

// AskText sends a prompt and returns the trimmed raw completion.
func (r *Reasoner) AskText(ctx context.Context, prompt string) (string, error) {
	var raw string
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = r.provider.Complete(ctx, CompletionRequest{Prompt: prompt})
		return err
	})
	return strings.TrimSpace(raw), err
}
