package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"veridex/internal/embedding"
	"veridex/internal/extract"
	"veridex/internal/llm"
	"veridex/internal/model"
)

// Tiers consults the three cache layers in order of decreasing
// precision before the full pipeline runs, and writes fresh results
// back through all of them. Every tier treats a store failure as a
// miss; a broken cache must never block an analysis.
type Tiers struct {
	documents DocumentStore
	vectors   *VectorIndex
	embedder  embedding.Engine
	reasoner  *llm.Reasoner // optional, personalizes tier-2 explanations
	cfg       model.CacheConfig
	logger    *zap.Logger
}

// NewTiers wires the cache layer from its stores
func NewTiers(documents DocumentStore, vectors *VectorIndex, embedder embedding.Engine, reasoner *llm.Reasoner, cfg model.CacheConfig, logger *zap.Logger) *Tiers {
	return &Tiers{
		documents: documents,
		vectors:   vectors,
		embedder:  embedder,
		reasoner:  reasoner,
		cfg:       cfg,
		logger:    logger,
	}
}

// Lookup tries the exact, semantic-document, and vector tiers in order.
// Returns nil on a full miss.
func (t *Tiers) Lookup(ctx context.Context, url, text string) *model.AnalysisResponse {
	id := extract.ContentID(url, text)

	if resp := t.exactLookup(ctx, id); resp != nil {
		return resp
	}

	vec, err := t.embedder.Embed(ctx, text)
	if err != nil {
		t.logger.Warn("cache embedding failed, skipping semantic tiers", zap.Error(err))
		return nil
	}

	if resp := t.semanticDocLookup(ctx, text, vec); resp != nil {
		return resp
	}
	return t.vectorLookup(ctx, vec)
}

func (t *Tiers) exactLookup(ctx context.Context, id string) *model.AnalysisResponse {
	record, err := t.documents.Get(ctx, id)
	if err != nil {
		t.logger.Warn("exact cache lookup failed", zap.Error(err))
		return nil
	}
	if record == nil {
		return nil
	}

	if err := t.documents.Bump(ctx, id, 1, 0, nil); err != nil {
		t.logger.Debug("view counter bump failed", zap.Error(err))
	}

	return responseFromRecord(record, model.SourceExact, 1)
}

// semanticDocLookup scans documents updated inside the trailing window
// and accepts the most similar one past the threshold, breaking
// similarity ties by stored score. Below the personalization threshold
// the cached explanation is rephrased for the new text.
func (t *Tiers) semanticDocLookup(ctx context.Context, text string, vec []float32) *model.AnalysisResponse {
	cutoff := time.Now().AddDate(0, 0, -t.cfg.WindowDays)
	candidates, err := t.documents.RecentWithEmbeddings(ctx, cutoff)
	if err != nil {
		t.logger.Warn("semantic document scan failed", zap.Error(err))
		return nil
	}

	var best *model.ArticleRecord
	bestSim := 0.0
	for i := range candidates {
		sim := embedding.CosineSimilarity(vec, candidates[i].Embedding)
		if sim > bestSim || (sim == bestSim && best != nil && candidates[i].Score > best.Score) {
			best = &candidates[i]
			bestSim = sim
		}
	}
	if best == nil || bestSim <= t.cfg.DocSimThreshold {
		return nil
	}

	resp := responseFromRecord(best, model.SourceDocSemantic, bestSim)
	if bestSim < t.cfg.PersonalizeThreshold {
		resp.Explanation = t.personalize(ctx, best.Explanation, text)
	}
	return resp
}

func (t *Tiers) vectorLookup(ctx context.Context, vec []float32) *model.AnalysisResponse {
	var best *Match
	for _, ns := range []string{NamespaceVerified, NamespaceDefault} {
		matches, err := t.vectors.Query(ctx, ns, vec, 1)
		if err != nil {
			t.logger.Warn("vector tier lookup failed", zap.String("namespace", ns), zap.Error(err))
			continue
		}
		if len(matches) > 0 && (best == nil || matches[0].Similarity > best.Similarity) {
			m := matches[0]
			best = &m
		}
	}
	if best == nil || best.Similarity <= t.cfg.VectorSimThreshold {
		return nil
	}

	return &model.AnalysisResponse{
		Score:       int(best.Entry.Score * 100),
		Prediction:  best.Entry.Prediction,
		Explanation: best.Entry.Explanation,
		ArticleID:   best.Entry.ID,
		Source:      model.SourceVectorCache,
		Similarity:  best.Similarity,
	}
}

// personalize asks the reasoning model to restate a cached explanation
// for a slightly different text. Best-effort; the cached explanation
// survives any failure.
func (t *Tiers) personalize(ctx context.Context, explanation, text string) string {
	if t.reasoner == nil || explanation == "" {
		return explanation
	}

	snippet := text
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}
	prompt := "Restate the following verdict explanation so it directly addresses the " +
		"text below. Keep the meaning and verdict identical, two sentences at most, " +
		"plain text only.\n\nExplanation: " + explanation + "\n\nText: " + snippet

	rephrased, err := t.reasoner.AskText(ctx, prompt)
	if err != nil || len(rephrased) < 10 || strings.Contains(rephrased, "{") {
		return explanation
	}
	return rephrased
}

// Store writes a fresh analysis through the document store and the
// vector index. An existing record for the same content merges in:
// scores average, confirming users union, counters survive. Returns the
// article id.
func (t *Tiers) Store(ctx context.Context, url, text string, summary model.Summary, userID string) string {
	id := extract.ContentID(url, text)
	now := time.Now().UTC()

	record := model.ArticleRecord{
		ID:           id,
		NormalizedID: extract.NormalizedID(url, text),
		Text:         text,
		URL:          url,
		Score:        float64(summary.Score) / 100,
		Prediction:   summary.Prediction,
		Explanation:  summary.Explanation,
		LastUpdated:  now,
	}
	if userID != "" {
		record.ConfirmedBy = []string{userID}
	}

	if existing, err := t.documents.Get(ctx, id); err == nil && existing != nil {
		record.Score = (existing.Score + record.Score) / 2
		record.ConfirmedBy = unionIDs(existing.ConfirmedBy, record.ConfirmedBy)
		record.Verified = existing.Verified
		record.TotalViews = existing.TotalViews
		record.TotalReports = existing.TotalReports
		record.CommunityFlagged = existing.CommunityFlagged
	}

	vec, err := t.embedder.Embed(ctx, text)
	if err != nil {
		t.logger.Warn("write-back embedding failed", zap.Error(err))
	} else {
		record.Embedding = vec
	}

	if err := t.documents.Upsert(ctx, record); err != nil {
		t.logger.Warn("document write-back failed", zap.Error(err))
	}

	if record.Embedding != nil {
		entry := VectorEntry{
			ID:          id,
			Namespace:   NamespaceDefault,
			Embedding:   record.Embedding,
			Score:       record.Score,
			Prediction:  record.Prediction,
			Explanation: record.Explanation,
			Text:        text,
			Expiry:      now.Add(time.Duration(t.cfg.RetentionDays) * 24 * time.Hour),
		}
		if err := t.vectors.Upsert(ctx, entry); err != nil {
			t.logger.Warn("vector write-back failed", zap.Error(err))
		}
	}

	return id
}

// Clear removes the nearest vector entry for a text, so the next
// submission reruns the pipeline
func (t *Tiers) Clear(ctx context.Context, text string) (string, error) {
	vec, err := t.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}
	return t.vectors.DeleteNearest(ctx, vec, t.cfg.VectorSimThreshold)
}

func responseFromRecord(record *model.ArticleRecord, source model.ResultSource, similarity float64) *model.AnalysisResponse {
	return &model.AnalysisResponse{
		Score:       int(record.Score * 100),
		Prediction:  record.Prediction,
		Explanation: record.Explanation,
		ArticleID:   record.ID,
		Source:      source,
		Similarity:  similarity,
	}
}

func unionIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, id := range append(a, b...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
