// Package corroborate searches the live web for independent evidence
// about a claim and judges how each result bears on it.
package corroborate

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"veridex/internal/embedding"
	"veridex/internal/extract"
	"veridex/internal/llm"
	"veridex/internal/model"
	"veridex/internal/search"
	"veridex/internal/trust"
)

const (
	resultsPerQuery  = 10
	minSnippetLen    = 20
	maxSnippetLen    = 350
	maxCandidates    = 8
	maxEvidenceKept  = 3
	similarityWeight = 0.75
	trustWeight      = 0.25
	voteThreshold    = 0.7
)

// Engine corroborates claims against web search results
type Engine struct {
	reasoner *llm.Reasoner
	searcher *search.Client
	embedder embedding.Engine
	trust    *trust.Store
	logger   *zap.Logger
}

// NewEngine wires a corroboration engine from its collaborators
func NewEngine(reasoner *llm.Reasoner, searcher *search.Client, embedder embedding.Engine, trustStore *trust.Store, logger *zap.Logger) *Engine {
	return &Engine{
		reasoner: reasoner,
		searcher: searcher,
		embedder: embedder,
		trust:    trustStore,
		logger:   logger,
	}
}

type candidate struct {
	result  search.Result
	snippet string
	domain  string
}

// Corroborate runs the full evidence loop for one claim: reformulation
// keywords folded into one merged search query, a single judgement
// call, then similarity and trust weighted scoring. The returned votes
// map carries domain scores strong enough to feed back into the trust
// store.
func (e *Engine) Corroborate(ctx context.Context, claim string) (model.Corroboration, map[string]float64) {
	reformulations := e.Reformulate(ctx, claim)
	summary := e.SummarizeClaim(ctx, claim)

	candidates := e.gather(ctx, MergedQuery(summary, reformulations))
	if len(candidates) == 0 {
		return model.Corroboration{Status: model.StatusNoResults}, nil
	}

	judgements := e.judgeEvidence(ctx, claim, candidates)

	claimVec, err := e.embedder.Embed(ctx, claim)
	if err != nil {
		e.logger.Warn("claim embedding failed", zap.Error(err))
		claimVec = nil
	}

	credible := e.trust.CredibleDomains(ctx)

	votes := make(map[string]float64)
	evidence := make([]model.Evidence, 0, len(candidates))
	for i, c := range candidates {
		// only judged supports/contradicts items count as evidence
		j, judged := judgements[i]
		if !judged || j.relevance == model.RelevanceUnrelated {
			continue
		}

		sim := e.snippetSimilarity(ctx, claimVec, c.snippet)

		isNew := !credible[c.domain]
		trustScore := e.trust.ScoreForURL(ctx, c.result.Link)
		if trustScore == 0 {
			trustScore = trust.DefaultScore(c.domain)
		}

		score := clamp01(similarityWeight*sim + trustWeight*trustScore)
		if score > voteThreshold {
			votes[c.domain] = score
		}

		evidence = append(evidence, model.Evidence{
			Title:         c.result.Title,
			Link:          c.result.Link,
			Snippet:       c.snippet,
			Similarity:    sim,
			DomainScore:   trustScore,
			EvidenceScore: score,
			IsNewDomain:   isNew,
			Relevance:     j.relevance,
			Confidence:    j.confidence,
		})
	}

	sort.SliceStable(evidence, func(a, b int) bool {
		return evidence[a].EvidenceScore > evidence[b].EvidenceScore
	})
	if len(evidence) > maxEvidenceKept {
		evidence = evidence[:maxEvidenceKept]
	}

	return model.Corroboration{
		Status:   classify(evidence),
		Evidence: evidence,
	}, votes
}

// gather runs the merged query and collects deduplicated, cleaned
// snippets. Search failures are already absorbed by the client, so an
// empty list is the only failure mode.
func (e *Engine) gather(ctx context.Context, query string) []candidate {
	seen := make(map[string]bool)

	var out []candidate
	for _, r := range e.searcher.Search(ctx, query, resultsPerQuery) {
		if r.Link == "" || seen[r.Link] {
			continue
		}
		snippet := search.CleanSnippet(r.Snippet)
		if len(snippet) < minSnippetLen {
			continue
		}
		snippet = extract.TruncateRunes(snippet, maxSnippetLen)
		seen[r.Link] = true
		out = append(out, candidate{
			result:  r,
			snippet: snippet,
			domain:  trust.DomainOf(r.Link),
		})
	}

	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

func (e *Engine) snippetSimilarity(ctx context.Context, claimVec []float32, snippet string) float64 {
	if claimVec == nil {
		return 0
	}
	vec, err := e.embedder.Embed(ctx, snippet)
	if err != nil {
		return 0
	}
	return embedding.CosineSimilarity(claimVec, vec)
}

// classify maps retained evidence volume to a corroboration status
func classify(evidence []model.Evidence) model.CorroborationStatus {
	switch {
	case len(evidence) >= 2:
		return model.StatusCorroborated
	case len(evidence) == 1:
		return model.StatusWeak
	default:
		return model.StatusNoResults
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
