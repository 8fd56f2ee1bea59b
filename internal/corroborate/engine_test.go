package corroborate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"veridex/internal/llm"
	"veridex/internal/model"
	"veridex/internal/search"
	"veridex/internal/trust"
)

// scriptedProvider routes prompts to canned responses by substring
type scriptedProvider struct {
	responses map[string]string
}

func (p *scriptedProvider) Name() string                       { return "scripted" }
func (p *scriptedProvider) IsAvailable(_ context.Context) bool { return true }

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	for marker, resp := range p.responses {
		if strings.Contains(req.Prompt, marker) {
			return resp, nil
		}
	}
	return "", nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubTrustBackend struct {
	records map[string]model.DomainTrustRecord
}

func (s *stubTrustBackend) Get(_ context.Context, domain string) (*model.DomainTrustRecord, error) {
	if r, ok := s.records[domain]; ok {
		rec := r
		return &rec, nil
	}
	return nil, nil
}

func (s *stubTrustBackend) BatchUpsert(_ context.Context, records []model.DomainTrustRecord) error {
	for _, r := range records {
		s.records[r.Domain] = r
	}
	return nil
}

func (s *stubTrustBackend) ListVoted(_ context.Context, _ int) ([]model.DomainTrustRecord, error) {
	return nil, nil
}

func newTestEngine(t *testing.T, provider llm.Provider, searchBody string, status int) *Engine {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(searchBody))
	}))
	t.Cleanup(server.Close)

	searcher := search.NewClient(model.SearchConfig{
		Endpoint:   server.URL,
		APIKey:     "k",
		CX:         "cx",
		RatePerSec: 1000,
		Burst:      1000,
	}, zap.NewNop())

	backend := &stubTrustBackend{records: map[string]model.DomainTrustRecord{
		"reuters.com": {Domain: "reuters.com", AvgScore: 0.9, NumVotes: 5},
	}}
	trustStore := trust.NewStore(backend, time.Minute, zap.NewNop())

	reasoner := llm.NewReasoner(provider, llm.RetryPolicy{MaxAttempts: 1})
	return NewEngine(reasoner, searcher, fixedEmbedder{}, trustStore, zap.NewNop())
}

func TestMergedQuery(t *testing.T) {
	got := MergedQuery("vaccine recall announced", []string{
		"was a Vaccine recall announced today", "recall details official statement",
	})
	if !strings.HasPrefix(got, "vaccine recall announced") {
		t.Fatalf("merged query lost summary: %q", got)
	}
	if strings.Count(strings.ToLower(got), "vaccine") != 1 {
		t.Errorf("summary words duplicated: %q", got)
	}
	extras := strings.Fields(got)[3:]
	if len(extras) == 0 || len(extras) > 4 {
		t.Errorf("want 1 to 4 extra keywords, got %v", extras)
	}
}

func TestReformulateParsesArray(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{
		"search queries": `["moon landing hoax evidence", "apollo 11 authenticity", "x"]`,
	}}
	e := newTestEngine(t, provider, `{"items":[]}`, http.StatusOK)

	got := e.Reformulate(context.Background(), "the moon landing was faked")
	if len(got) != 2 {
		t.Fatalf("Reformulate = %v, want 2 entries (short one dropped)", got)
	}
}

func TestReformulateQuotedFallback(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{
		"search queries": `Here are some options: "first useful query" and "second useful query"`,
	}}
	e := newTestEngine(t, provider, `{"items":[]}`, http.StatusOK)

	got := e.Reformulate(context.Background(), "some claim text here")
	if len(got) != 2 || got[0] != "first useful query" {
		t.Fatalf("Reformulate fallback = %v", got)
	}
}

func TestReformulateClaimFallback(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{}}
	e := newTestEngine(t, provider, `{"items":[]}`, http.StatusOK)

	claim := "an unverifiable statement about events"
	got := e.Reformulate(context.Background(), claim)
	if len(got) != 1 || got[0] != claim {
		t.Fatalf("Reformulate = %v, want the claim itself", got)
	}
}

func TestSummarizeClaimFallbacks(t *testing.T) {
	long := strings.Repeat("word ", 40)

	cases := []struct {
		name     string
		response string
		wantSelf bool
	}{
		{"too short", "hi", true},
		{"leaked json", `{"query": "something"}`, true},
		{"error text", "Error: rate limited by upstream", true},
		{"clean", "city flood damage report", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &scriptedProvider{responses: map[string]string{"Summarize": tc.response}}
			e := newTestEngine(t, provider, `{"items":[]}`, http.StatusOK)

			got := e.SummarizeClaim(context.Background(), long)
			if tc.wantSelf {
				if !strings.HasPrefix(long, got) || len(got) > 120 {
					t.Errorf("fallback = %q, want claim prefix of at most 120 chars", got)
				}
			} else if got != tc.response {
				t.Errorf("summary = %q, want %q", got, tc.response)
			}
		})
	}
}

func TestCorroborateNoResults(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{
		"search queries": `["query one here"]`,
		"Summarize":      "short usable summary",
	}}
	e := newTestEngine(t, provider, `{"items":[]}`, http.StatusOK)

	got, votes := e.Corroborate(context.Background(), "a claim with no coverage at all")
	if got.Status != model.StatusNoResults {
		t.Errorf("status = %s, want %s", got.Status, model.StatusNoResults)
	}
	if len(votes) != 0 {
		t.Errorf("votes = %v, want none", votes)
	}
}

const searchItems = `{"items":[
  {"title":"Reuters report","snippet":"Officials confirmed the recall affects three regions nationwide.","link":"https://www.reuters.com/a"},
  {"title":"Blog take","snippet":"This whole story is completely made up according to my sources.","link":"https://randomblog.net/b"}
]}`

func TestCorroborateSupporting(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{
		"search queries": `["recall confirmed officials"]`,
		"Summarize":      "recall confirmed by officials",
		"Evidence:":      `{"evaluated":[{"index":1,"relevance":"supports","confidence":90},{"index":2,"relevance":"contradicts","confidence":40}]}`,
	}}
	e := newTestEngine(t, provider, searchItems, http.StatusOK)

	got, votes := e.Corroborate(context.Background(), "officials confirmed the recall")
	if got.Status != model.StatusCorroborated {
		t.Fatalf("status = %s, want corroborated", got.Status)
	}
	if len(got.Evidence) != 2 {
		t.Fatalf("evidence count = %d, want 2", len(got.Evidence))
	}

	// identical embeddings give similarity 1; reuters carries 0.9 trust
	top := got.Evidence[0]
	if top.Link != "https://www.reuters.com/a" {
		t.Errorf("top evidence = %s, want the trusted domain first", top.Link)
	}
	want := 0.75*1 + 0.25*0.9
	if top.EvidenceScore < want-1e-9 || top.EvidenceScore > want+1e-9 {
		t.Errorf("top score = %v, want %v", top.EvidenceScore, want)
	}
	if top.IsNewDomain {
		t.Error("reuters should not be flagged as a new domain")
	}

	if _, ok := votes["reuters.com"]; !ok {
		t.Errorf("votes = %v, want reuters.com present", votes)
	}
}

func TestCorroborateWeakWhenOnlyContradicted(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{
		"search queries": `["recall confirmed officials"]`,
		"Summarize":      "recall confirmed by officials",
		"Evidence:":      `{"evaluated":[{"index":1,"relevance":"contradicts","confidence":80},{"index":2,"relevance":"unrelated","confidence":10}]}`,
	}}
	e := newTestEngine(t, provider, searchItems, http.StatusOK)

	got, _ := e.Corroborate(context.Background(), "officials denied everything")
	if got.Status != model.StatusWeak {
		t.Errorf("status = %s, want weak", got.Status)
	}
	if got.EvidenceStrength() >= 0 {
		t.Errorf("strength = %v, want negative with only contradiction", got.EvidenceStrength())
	}
}

func TestCorroborateSearchesOnce(t *testing.T) {
	var searchCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&searchCalls, 1)
		_, _ = w.Write([]byte(searchItems))
	}))
	defer server.Close()

	searcher := search.NewClient(model.SearchConfig{
		Endpoint: server.URL, APIKey: "k", CX: "cx", RatePerSec: 1000, Burst: 1000,
	}, zap.NewNop())

	provider := &scriptedProvider{responses: map[string]string{
		"search queries": `["recall confirmed officials", "product recall regions affected"]`,
		"Summarize":      "recall confirmed by officials",
		"Evidence:":      `{"evaluated":[{"index":1,"relevance":"supports","confidence":90}]}`,
	}}
	reasoner := llm.NewReasoner(provider, llm.RetryPolicy{MaxAttempts: 1})
	trustStore := trust.NewStore(&stubTrustBackend{records: map[string]model.DomainTrustRecord{}},
		time.Minute, zap.NewNop())
	e := NewEngine(reasoner, searcher, fixedEmbedder{}, trustStore, zap.NewNop())

	e.Corroborate(context.Background(), "officials confirmed the recall")

	if got := atomic.LoadInt32(&searchCalls); got != 1 {
		t.Errorf("search calls = %d, want the reformulations merged into one query", got)
	}
}

func TestCorroborateSearchFailure(t *testing.T) {
	provider := &scriptedProvider{responses: map[string]string{
		"search queries": `["some query text"]`,
		"Summarize":      "some usable summary",
	}}
	e := newTestEngine(t, provider, "upstream broken", http.StatusInternalServerError)

	got, _ := e.Corroborate(context.Background(), "any claim at all here")
	if got.Status != model.StatusNoResults {
		t.Errorf("status = %s, want no_results on search failure", got.Status)
	}
}
