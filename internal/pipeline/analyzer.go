// Package pipeline orchestrates a full veracity analysis: cache tiers,
// evidence gathering, per-claim ensemble, aggregation, and write-back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"veridex/internal/cache"
	"veridex/internal/classifier"
	"veridex/internal/corroborate"
	"veridex/internal/ensemble"
	"veridex/internal/extract"
	"veridex/internal/llm"
	"veridex/internal/model"
	"veridex/internal/search"
	"veridex/internal/trust"
	"veridex/internal/worker"
)

// ErrEmptyInput is returned when there is no text to analyze
var ErrEmptyInput = errors.New("empty input text")

// Analyzer runs the full analysis pipeline. All collaborators are
// injected; the analyzer itself holds no global state.
type Analyzer struct {
	reasoner     *llm.Reasoner
	classifier   *classifier.Client
	factcheck    *search.FactCheckConnector
	corroborator *corroborate.Engine
	trust        *trust.Store
	tiers        *cache.Tiers
	pool         *worker.Pool
	logger       *zap.Logger
}

// NewAnalyzer wires an analyzer from its collaborators
func NewAnalyzer(
	reasoner *llm.Reasoner,
	classifierClient *classifier.Client,
	factcheck *search.FactCheckConnector,
	corroborator *corroborate.Engine,
	trustStore *trust.Store,
	tiers *cache.Tiers,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		reasoner:     reasoner,
		classifier:   classifierClient,
		factcheck:    factcheck,
		corroborator: corroborator,
		trust:        trustStore,
		tiers:        tiers,
		pool:         worker.NewPool(extract.MaxClaims),
		logger:       logger,
	}
}

// Analyze checks the cache tiers and on a full miss runs the pipeline,
// writing the fresh result back through the cache
func (a *Analyzer) Analyze(ctx context.Context, url, text, userID string) (*model.AnalysisResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	if resp := a.tiers.Lookup(ctx, url, text); resp != nil {
		a.logger.Info("cache hit",
			zap.String("source", string(resp.Source)),
			zap.String("article_id", resp.ArticleID))
		return resp, nil
	}

	result := a.run(ctx, text)
	id := a.tiers.Store(ctx, url, text, result.Summary, userID)

	a.logger.Info("analysis complete",
		zap.String("article_id", id),
		zap.String("prediction", string(result.Summary.Prediction)),
		zap.Int("score", result.Summary.Score),
		zap.Float64("runtime_sec", result.RuntimeSec))

	return &model.AnalysisResponse{
		Score:         result.Summary.Score,
		Prediction:    result.Summary.Prediction,
		Explanation:   result.Summary.Explanation,
		ArticleID:     id,
		Source:        model.SourceNewAnalysis,
		Details:       result.Details,
		RuntimeSec:    result.RuntimeSec,
		ClaimsChecked: result.ClaimsChecked,
	}, nil
}

// run executes the three pipeline phases on a cache miss
func (a *Analyzer) run(ctx context.Context, text string) model.AnalysisResult {
	start := time.Now()

	// Phase 1: fact-check lookup and metadata extraction
	var (
		fact model.FactCheckSummary
		meta model.Metadata
	)
	phase1, p1ctx := errgroup.WithContext(ctx)
	phase1.Go(func() error {
		fact = a.factcheck.Lookup(p1ctx, text)
		return nil
	})
	phase1.Go(func() error {
		meta = a.extractMetadata(p1ctx, text)
		return nil
	})
	phase1.Wait()

	claims := extract.SplitClaims(meta.Text)

	// Phase 2: classifier call and per-claim corroboration
	var scores model.ClassifierScores
	corroborations := make([]model.Corroboration, len(claims))
	claimVotes := make([]map[string]float64, len(claims))

	phase2, p2ctx := errgroup.WithContext(ctx)
	phase2.Go(func() error {
		scores = a.classifier.Predict(p2ctx, meta)
		return nil
	})
	for i := range claims {
		i := i
		phase2.Go(func() error {
			corroborations[i], claimVotes[i] = a.corroborator.Corroborate(p2ctx, claims[i].Text)
			return nil
		})
	}
	phase2.Wait()

	if votes := mergeVotes(claimVotes); len(votes) > 0 {
		if err := a.trust.ApplyVotes(ctx, votes); err != nil {
			a.logger.Warn("domain trust update failed", zap.Error(err))
		}
	}

	// Phase 3: per-claim ensemble verdicts
	jobs := make([]worker.Job, len(claims))
	for i := range claims {
		jobs[i] = &claimJob{
			analyzer: a,
			claim:    claims[i],
			fullText: meta.Text,
			scores:   scores,
			fact:     fact,
			corr:     corroborations[i],
		}
	}

	verdicts := make([]model.ClaimVerdict, 0, len(claims))
	for _, r := range a.pool.Run(ctx, jobs) {
		if cr, ok := r.(*claimResult); ok {
			verdicts = append(verdicts, cr.verdict)
		}
	}

	return model.AnalysisResult{
		Summary:       ensemble.Aggregate(verdicts),
		RuntimeSec:    time.Since(start).Seconds(),
		ClaimsChecked: len(claims),
		Details:       verdicts,
	}
}

// verdictFor produces the full per-claim record. Claims with no
// corroboration and no fact-check records short-circuit to Unknown
// without a reasoning-model call.
func (a *Analyzer) verdictFor(ctx context.Context, claim model.Claim, fullText string, scores model.ClassifierScores, fact model.FactCheckSummary, corr model.Corroboration) model.ClaimVerdict {
	strength := corr.EvidenceStrength()

	var (
		opinion     model.ReasonerOpinion
		explanation string
		decision    model.EnsembleDecision
	)

	if corr.Status == model.StatusNoResults && fact.Status == model.FactCheckNone {
		opinion = model.ReasonerOpinion{Prediction: model.LabelUnknown, Confidence: 60}
		decision = model.EnsembleDecision{FinalPrediction: model.LabelUnknown, FinalConfidence: 60}
	} else {
		opinion, explanation = a.judgeClaim(ctx, claim, fullText, corr)
		decision = ensemble.Fuse(opinion, scores, fact.Status, corr.Status, strength)
	}

	if explanation == "" || strings.Contains(explanation, "{") {
		explanation = fmt.Sprintf("%s: %d%% | evidence=%.2f",
			decision.FinalPrediction, decision.FinalConfidence, strength)
	}

	return model.ClaimVerdict{
		ClaimText:        claim.Text,
		Reasoner:         opinion,
		Classifier:       scores,
		FactCheck:        fact,
		Corroboration:    corr,
		Ensemble:         decision,
		Explanation:      explanation,
		EvidenceStrength: strength,
	}
}

type claimJob struct {
	analyzer *Analyzer
	claim    model.Claim
	fullText string
	scores   model.ClassifierScores
	fact     model.FactCheckSummary
	corr     model.Corroboration
}

type claimResult struct {
	verdict model.ClaimVerdict
}

func (r *claimResult) Err() error { return nil }

func (j *claimJob) Execute(ctx context.Context) worker.Result {
	return &claimResult{
		verdict: j.analyzer.verdictFor(ctx, j.claim, j.fullText, j.scores, j.fact, j.corr),
	}
}

func mergeVotes(perClaim []map[string]float64) map[string]float64 {
	merged := make(map[string]float64)
	for _, votes := range perClaim {
		for domain, score := range votes {
			if score > merged[domain] {
				merged[domain] = score
			}
		}
	}
	return merged
}

// ClearCache removes the nearest vector entry for a text so its next
// submission reruns the full pipeline
func (a *Analyzer) ClearCache(ctx context.Context, text string) (string, error) {
	return a.tiers.Clear(ctx, text)
}
