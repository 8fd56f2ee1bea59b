package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"veridex/internal/extract"
	"veridex/internal/model"
)

const metadataTextCap = 4000

// extractMetadata asks the reasoning model to pull structured metadata
// out of raw text. Every field has a deterministic fallback so the
// pipeline always gets a usable Metadata even from an empty response.
func (a *Analyzer) extractMetadata(ctx context.Context, text string) model.Metadata {
	prompt := "Extract metadata from this text. Respond with strict JSON only:\n" +
		`{"title":"...","text":"...","author":"...","date":"YYYY-MM-DD","source":"...","category":"..."}` +
		"\nUse the cleaned article body for \"text\". If a field cannot be determined, " +
		"use \"Unknown\".\n\nText:\n" + capText(text, metadataTextCap)

	resp, err := a.reasoner.AskStructured(ctx, prompt)
	if err != nil {
		a.logger.Debug("metadata extraction failed", zap.Error(err))
	}

	meta := model.Metadata{
		Title:    resp.Str("title"),
		Text:     resp.Str("text"),
		Author:   resp.Str("author"),
		Date:     resp.Str("date"),
		Source:   resp.Str("source"),
		Category: resp.Str("category"),
	}

	if meta.Title == "" {
		meta.Title = "Inferred"
	}
	if meta.Text == "" {
		meta.Text = capText(text, metadataTextCap)
	}
	if meta.Author == "" {
		meta.Author = "Unknown"
	}
	if meta.Source == "" {
		meta.Source = "Unknown"
	}
	if meta.Date == "" {
		meta.Date = time.Now().UTC().Format("2006-01-02")
	}
	if meta.Category == "" {
		meta.Category = "Unknown"
	}
	return meta
}

// QuickAssess produces a short, non-committal first take on a text
// while the full analysis runs elsewhere
func (a *Analyzer) QuickAssess(ctx context.Context, text string) (string, error) {
	prompt := "Give a brief initial read on the credibility of the following text in " +
		"2-3 sentences. Do not give a final verdict; note what stands out and what " +
		"would need verification. Plain text only.\n\nText:\n" + capText(text, metadataTextCap)

	assessment, err := a.reasoner.AskText(ctx, prompt)
	if err != nil {
		return "", err
	}
	if assessment == "" || strings.Contains(assessment, "{") {
		return "Preliminary automated review is inconclusive; full analysis in progress.", nil
	}
	return assessment, nil
}

func capText(text string, n int) string {
	return extract.TruncateRunes(text, n)
}
