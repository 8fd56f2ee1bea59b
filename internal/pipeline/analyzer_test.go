package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"veridex/internal/cache"
	"veridex/internal/classifier"
	"veridex/internal/corroborate"
	"veridex/internal/llm"
	"veridex/internal/model"
	"veridex/internal/search"
	"veridex/internal/trust"
)

// scriptedProvider answers prompts by marker substring and counts how
// often the per-claim judging prompt was seen
type scriptedProvider struct {
	responses  map[string]string
	judgeCalls int32
}

func (p *scriptedProvider) Name() string                       { return "scripted" }
func (p *scriptedProvider) IsAvailable(_ context.Context) bool { return true }

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	if strings.Contains(req.Prompt, "Assess the veracity") {
		atomic.AddInt32(&p.judgeCalls, 1)
	}
	for marker, resp := range p.responses {
		if strings.Contains(req.Prompt, marker) {
			return resp, nil
		}
	}
	return "", nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type memTrustBackend struct {
	records map[string]model.DomainTrustRecord
}

func (m *memTrustBackend) Get(_ context.Context, domain string) (*model.DomainTrustRecord, error) {
	if r, ok := m.records[domain]; ok {
		rec := r
		return &rec, nil
	}
	return nil, nil
}

func (m *memTrustBackend) BatchUpsert(_ context.Context, records []model.DomainTrustRecord) error {
	for _, r := range records {
		m.records[r.Domain] = r
	}
	return nil
}

func (m *memTrustBackend) ListVoted(_ context.Context, _ int) ([]model.DomainTrustRecord, error) {
	return nil, nil
}

type fakeDocuments struct {
	records map[string]model.ArticleRecord
}

func (f *fakeDocuments) Get(_ context.Context, id string) (*model.ArticleRecord, error) {
	if r, ok := f.records[id]; ok {
		rec := r
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeDocuments) Upsert(_ context.Context, record model.ArticleRecord) error {
	f.records[record.ID] = record
	return nil
}

func (f *fakeDocuments) RecentWithEmbeddings(_ context.Context, _ time.Time) ([]model.ArticleRecord, error) {
	return nil, nil
}

func (f *fakeDocuments) Bump(_ context.Context, id string, views, reports int, _ *bool) error {
	r := f.records[id]
	r.TotalViews += views
	r.TotalReports += reports
	f.records[id] = r
	return nil
}

type testRig struct {
	analyzer *Analyzer
	provider *scriptedProvider
	trust    *memTrustBackend
}

func newTestRig(t *testing.T, responses map[string]string, searchBody, factBody string) *testRig {
	t.Helper()

	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	}))
	t.Cleanup(searchSrv.Close)

	factSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(factBody))
	}))
	t.Cleanup(factSrv.Close)

	index, err := cache.OpenVectorIndex(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open vector index: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	logger := zap.NewNop()
	provider := &scriptedProvider{responses: responses}
	reasoner := llm.NewReasoner(provider, llm.RetryPolicy{MaxAttempts: 1})

	trustBackend := &memTrustBackend{records: map[string]model.DomainTrustRecord{
		"reuters.com": {Domain: "reuters.com", AvgScore: 0.9, NumVotes: 5},
		"bbc.com":     {Domain: "bbc.com", AvgScore: 0.85, NumVotes: 5},
		"apnews.com":  {Domain: "apnews.com", AvgScore: 0.9, NumVotes: 5},
	}}
	trustStore := trust.NewStore(trustBackend, time.Minute, logger)

	embedder := unitEmbedder{}
	searcher := search.NewClient(model.SearchConfig{
		Endpoint: searchSrv.URL, APIKey: "k", CX: "cx", RatePerSec: 1000, Burst: 1000,
	}, logger)
	factcheck := search.NewFactCheckConnector(model.FactCheckConfig{
		Endpoint: factSrv.URL, APIKey: "k",
	}, logger)

	corroborator := corroborate.NewEngine(reasoner, searcher, embedder, trustStore, logger)
	classifierClient := classifier.NewClient(model.ClassifierConfig{}, llm.RetryPolicy{MaxAttempts: 1}, logger)
	tiers := cache.NewTiers(&fakeDocuments{records: make(map[string]model.ArticleRecord)},
		index, embedder, reasoner, model.DefaultConfig().Cache, logger)

	return &testRig{
		analyzer: NewAnalyzer(reasoner, classifierClient, factcheck, corroborator, trustStore, tiers, logger),
		provider: provider,
		trust:    trustBackend,
	}
}

const articleText = "Scientists confirm water boils at 100 degrees Celsius at sea level under standard pressure."

func metadataFor(text string) string {
	return `{"title":"Boiling point","text":"` + text + `","author":"Unknown","date":"2026-08-30","source":"example","category":"science"}`
}

const supportingItems = `{"items":[
  {"title":"Reuters science desk","snippet":"Standard boiling point of water at sea level is confirmed as 100 degrees Celsius.","link":"https://www.reuters.com/sci"},
  {"title":"BBC explainer","snippet":"Water boils at 100C at sea level, measurements show across laboratories.","link":"https://www.bbc.com/sci"},
  {"title":"AP wire","snippet":"Physicists reiterate that water boils at 100 degrees Celsius at standard pressure.","link":"https://apnews.com/sci"}
]}`

func TestAnalyzeEndToEndStrongCorroboration(t *testing.T) {
	responses := map[string]string{
		"Extract metadata":     metadataFor(articleText),
		"web search queries":   `["water boiling point sea level", "boiling temperature standard pressure"]`,
		"Summarize the":        "water boiling point 100 celsius sea level",
		"You are verifying":    `{"evaluated":[{"index":1,"relevance":"supports","confidence":90},{"index":2,"relevance":"supports","confidence":90},{"index":3,"relevance":"supports","confidence":90}]}`,
		"Assess the veracity":  `{"prediction":"Real","confidence":90,"explanation":"Basic physics, widely corroborated."}`,
	}

	rig := newTestRig(t, responses, supportingItems, `{"claims":[]}`)
	resp, err := rig.analyzer.Analyze(context.Background(), "https://example.com/boil", articleText, "user-1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if resp.Source != model.SourceNewAnalysis {
		t.Errorf("source = %s, want new_analysis", resp.Source)
	}
	if resp.Prediction != model.LabelReal {
		t.Errorf("prediction = %s, want Real", resp.Prediction)
	}
	if resp.Score < 85 {
		t.Errorf("score = %d, want >= 85 with strong corroboration", resp.Score)
	}
	if resp.ClaimsChecked == 0 || len(resp.Details) == 0 {
		t.Errorf("details missing: %+v", resp)
	}
}

func TestAnalyzeCacheIdempotence(t *testing.T) {
	responses := map[string]string{
		"Extract metadata":    metadataFor(articleText),
		"web search queries":  `["water boiling point sea level"]`,
		"Summarize the":       "water boiling point 100 celsius sea level",
		"You are verifying":   `{"evaluated":[{"index":1,"relevance":"supports","confidence":90},{"index":2,"relevance":"supports","confidence":85}]}`,
		"Assess the veracity": `{"prediction":"Real","confidence":90,"explanation":"Corroborated."}`,
	}

	rig := newTestRig(t, responses, supportingItems, `{"claims":[]}`)
	ctx := context.Background()

	first, err := rig.analyzer.Analyze(ctx, "https://example.com/boil", articleText, "")
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}

	judged := atomic.LoadInt32(&rig.provider.judgeCalls)

	second, err := rig.analyzer.Analyze(ctx, "https://example.com/boil", articleText, "")
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if second.ArticleID != first.ArticleID {
		t.Errorf("article ids differ: %s vs %s", first.ArticleID, second.ArticleID)
	}
	if second.Source != model.SourceExact {
		t.Errorf("second source = %s, want firestore_exact", second.Source)
	}
	if got := atomic.LoadInt32(&rig.provider.judgeCalls); got != judged {
		t.Errorf("pipeline re-ran on cache hit: %d judge calls, want %d", got, judged)
	}
}

func TestAnalyzeUnknownShortCircuit(t *testing.T) {
	responses := map[string]string{
		"Extract metadata":   metadataFor("An obscure statement nobody has ever written about before today."),
		"web search queries": `["obscure statement coverage"]`,
		"Summarize the":      "obscure statement nobody covered",
	}

	rig := newTestRig(t, responses, `{"items":[]}`, `{"claims":[]}`)
	resp, err := rig.analyzer.Analyze(context.Background(), "",
		"An obscure statement nobody has ever written about before today.", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if resp.Prediction != model.LabelUnknown {
		t.Errorf("prediction = %s, want Unknown", resp.Prediction)
	}
	for _, d := range resp.Details {
		if d.Ensemble.FinalConfidence != 60 {
			t.Errorf("claim confidence = %d, want 60", d.Ensemble.FinalConfidence)
		}
	}
	if got := atomic.LoadInt32(&rig.provider.judgeCalls); got != 0 {
		t.Errorf("reasoner judged %d claims despite short-circuit, want 0", got)
	}
}

func TestAnalyzeUpdatesDomainTrust(t *testing.T) {
	responses := map[string]string{
		"Extract metadata":    metadataFor(articleText),
		"web search queries":  `["water boiling point sea level"]`,
		"Summarize the":       "water boiling point 100 celsius sea level",
		"You are verifying":   `{"evaluated":[{"index":1,"relevance":"supports","confidence":90},{"index":2,"relevance":"supports","confidence":90},{"index":3,"relevance":"supports","confidence":90}]}`,
		"Assess the veracity": `{"prediction":"Real","confidence":90,"explanation":"ok"}`,
	}

	rig := newTestRig(t, responses, supportingItems, `{"claims":[]}`)
	if _, err := rig.analyzer.Analyze(context.Background(), "", articleText, ""); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	got := rig.trust.records["reuters.com"]
	if got.NumVotes != 6 {
		t.Errorf("reuters votes = %d, want 6 after the batched update", got.NumVotes)
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	rig := newTestRig(t, map[string]string{}, `{"items":[]}`, `{"claims":[]}`)
	if _, err := rig.analyzer.Analyze(context.Background(), "", "   ", ""); err != ErrEmptyInput {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestQuickAssess(t *testing.T) {
	rig := newTestRig(t, map[string]string{
		"initial read": "The text cites no sources and makes a strong causal claim worth verifying.",
	}, `{"items":[]}`, `{"claims":[]}`)

	got, err := rig.analyzer.QuickAssess(context.Background(), articleText)
	if err != nil {
		t.Fatalf("QuickAssess: %v", err)
	}
	if !strings.Contains(got, "verifying") {
		t.Errorf("assessment = %q", got)
	}
}

func TestCapTextKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 300)
	got := capText(text, 101)
	if !utf8.ValidString(got) {
		t.Fatal("capped text broke a multi-byte character")
	}
	if utf8.RuneCountInString(got) != 101 {
		t.Errorf("rune count = %d, want 101", utf8.RuneCountInString(got))
	}
}

func TestLocalContextKeepsRunesWhole(t *testing.T) {
	full := strings.Repeat("ü", 400) + " the claim text " + strings.Repeat("ö", 400)
	got := localContext(full, "the claim text")
	if !utf8.ValidString(got) {
		t.Fatal("context window broke a multi-byte character")
	}
	if !strings.Contains(got, "the claim text") {
		t.Errorf("window dropped the claim: %q", got)
	}
}

func TestVerdictExplanationFallback(t *testing.T) {
	responses := map[string]string{
		"Extract metadata":    metadataFor(articleText),
		"web search queries":  `["water boiling point sea level"]`,
		"Summarize the":       "water boiling point 100 celsius sea level",
		"You are verifying":   `{"evaluated":[{"index":1,"relevance":"supports","confidence":90},{"index":2,"relevance":"supports","confidence":85}]}`,
		"Assess the veracity": `{"prediction":"Real","confidence":90,"explanation":""}`,
	}

	rig := newTestRig(t, responses, supportingItems, `{"claims":[]}`)
	resp, err := rig.analyzer.Analyze(context.Background(), "", articleText, "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(resp.Details) == 0 || !strings.Contains(resp.Details[0].Explanation, "evidence=") {
		t.Errorf("explanation fallback missing: %+v", resp.Details)
	}
}
