package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"veridex/internal/model"
)

func factCheckServer(t *testing.T, ratings []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "" {
			t.Error("expected a query parameter")
		}
		body := `{"claims":[`
		for i, rating := range ratings {
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(
				`{"text":"claim %d","claimReview":[{"publisher":{"name":"Checker"},"textualRating":%q,"title":"t","url":"https://fc.example/%d"}]}`,
				i, rating, i)
		}
		body += `]}`
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func newTestConnector(endpoint string) *FactCheckConnector {
	return NewFactCheckConnector(model.FactCheckConfig{
		Endpoint: endpoint,
		APIKey:   "k",
		Timeout:  2,
	}, zap.NewNop())
}

const sampleText = "The president signed the new climate bill into law yesterday afternoon."

func TestLookup_PredominantlyFalse(t *testing.T) {
	server := factCheckServer(t, []string{"False", "Pants on Fire", "false claim"})
	defer server.Close()

	summary := newTestConnector(server.URL).Lookup(context.Background(), sampleText)
	if summary.Status != model.FactCheckFalse {
		t.Errorf("expected predominantly_false, got %s", summary.Status)
	}
	if summary.FalseCount != 3 || summary.Total != 3 {
		t.Errorf("unexpected counts: %+v", summary)
	}
}

func TestLookup_PredominantlyTrue(t *testing.T) {
	server := factCheckServer(t, []string{"True", "Accurate", "Verified", "half true"})
	defer server.Close()

	summary := newTestConnector(server.URL).Lookup(context.Background(), sampleText)
	if summary.Status != model.FactCheckTrue {
		t.Errorf("expected predominantly_true, got %s", summary.Status)
	}
}

func TestLookup_MixedRatings(t *testing.T) {
	server := factCheckServer(t, []string{"Mixed", "Partially correct", "True", "False"})
	defer server.Close()

	summary := newTestConnector(server.URL).Lookup(context.Background(), sampleText)
	if summary.Status != model.FactCheckMixed {
		t.Errorf("expected mixed_ratings, got %s", summary.Status)
	}
}

func TestLookup_Inconclusive(t *testing.T) {
	server := factCheckServer(t, []string{"True", "False"})
	defer server.Close()

	summary := newTestConnector(server.URL).Lookup(context.Background(), sampleText)
	if summary.Status != model.FactCheckInconclusive {
		t.Errorf("expected inconclusive, got %s", summary.Status)
	}
}

func TestLookup_NoClaims(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	summary := newTestConnector(server.URL).Lookup(context.Background(), sampleText)
	if summary.Status != model.FactCheckNone {
		t.Errorf("expected no_fact_checks, got %s", summary.Status)
	}
	if summary.Total != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
}

func TestLookup_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	summary := newTestConnector(server.URL).Lookup(context.Background(), sampleText)
	if summary.Status != model.FactCheckAPIError {
		t.Errorf("expected api_error, got %s", summary.Status)
	}
}

func TestLookup_TransportError(t *testing.T) {
	summary := newTestConnector("http://127.0.0.1:1").Lookup(context.Background(), sampleText)
	if summary.Status != model.FactCheckError {
		t.Errorf("expected error status, got %s", summary.Status)
	}
	if summary.FactChecks == nil {
		t.Error("summary must stay well-formed on failure")
	}
}

func TestBucketRating(t *testing.T) {
	tests := []struct {
		rating string
		want   model.RatingCategory
	}{
		{"false", model.RatingFalse},
		{"pants on fire!", model.RatingFalse},
		{"mostly false", model.RatingFalse},
		{"true", model.RatingTrue},
		{"accurate reporting", model.RatingTrue},
		{"mixed", model.RatingMixed},
		{"half true", model.RatingTrue}, // "true" keyword wins before "half"
		{"satire", model.RatingUnknown},
	}
	for _, tt := range tests {
		if got := BucketRating(tt.rating); got != tt.want {
			t.Errorf("BucketRating(%q) = %s, want %s", tt.rating, got, tt.want)
		}
	}
}

func TestSearch_BestEffort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"title":"A","snippet":"s","link":"https://a.example"},{"title":"B","snippet":"s","link":"https://b.example"}]}`))
	}))
	defer server.Close()

	client := NewClient(model.SearchConfig{
		Endpoint:   server.URL,
		APIKey:     "k",
		CX:         "cx",
		Timeout:    2,
		RatePerSec: 100,
		Burst:      10,
	}, zap.NewNop())

	results := client.Search(context.Background(), "water boiling point", 1)
	if len(results) != 1 {
		t.Fatalf("expected truncation to 1 result, got %d", len(results))
	}

	// Unreachable endpoint degrades to empty, not error
	client = NewClient(model.SearchConfig{
		Endpoint: "http://127.0.0.1:1", APIKey: "k", CX: "cx", Timeout: 1, RatePerSec: 100, Burst: 10,
	}, zap.NewNop())
	if got := client.Search(context.Background(), "q", 5); len(got) != 0 {
		t.Errorf("expected empty results on transport failure, got %d", len(got))
	}
}
