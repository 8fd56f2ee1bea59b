package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"veridex/internal/model"
)

func newTestClient(endpoint string) *Client {
	return NewClient(model.SearchConfig{
		Endpoint: endpoint, APIKey: "k", CX: "cx", RatePerSec: 1000, Burst: 1000,
	}, zap.NewNop())
}

func TestSearchReturnsItems(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"items":[
			{"title":"a","snippet":"first","link":"https://one.test"},
			{"title":"b","snippet":"second","link":"https://two.test"}
		]}`))
	}))
	defer srv.Close()

	results := newTestClient(srv.URL).Search(context.Background(), "boiling point", 10)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if gotQuery != "boiling point" {
		t.Errorf("query = %q", gotQuery)
	}
	if results[0].Link != "https://one.test" {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestSearchCapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[
			{"title":"a","snippet":"1","link":"l1"},
			{"title":"b","snippet":"2","link":"l2"},
			{"title":"c","snippet":"3","link":"l3"}
		]}`))
	}))
	defer srv.Close()

	if got := newTestClient(srv.URL).Search(context.Background(), "q", 2); len(got) != 2 {
		t.Errorf("results = %d, want capped at 2", len(got))
	}
}

func TestSearchFailuresAreEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if got := newTestClient(srv.URL).Search(context.Background(), "q", 10); got != nil {
		t.Errorf("results = %v, want nil on bad status", got)
	}

	srv.Close()
	if got := newTestClient(srv.URL).Search(context.Background(), "q", 10); got != nil {
		t.Errorf("results = %v, want nil on transport failure", got)
	}
}

func TestCleanSnippet(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"<b>Bold</b> claim here", "Bold claim here"},
		{"uses &quot;quotes&quot; &amp; entities", `uses "quotes" & entities`},
		{"Water <b>boils</b> at 100&deg;C &mdash; confirmed.", "Water boils at 100°C — confirmed."},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		if got := CleanSnippet(tc.in); got != tc.want {
			t.Errorf("CleanSnippet(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
