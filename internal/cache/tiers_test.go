package cache

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"veridex/internal/extract"
	"veridex/internal/model"
)

// mapEmbedder returns a fixed vector per text, defaulting to the zero
// vector direction when unmapped
type mapEmbedder struct {
	vectors map[string][]float32
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

type fakeDocuments struct {
	records map[string]model.ArticleRecord
	fail    bool
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{records: make(map[string]model.ArticleRecord)}
}

func (f *fakeDocuments) Get(_ context.Context, id string) (*model.ArticleRecord, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	if r, ok := f.records[id]; ok {
		rec := r
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeDocuments) Upsert(_ context.Context, record model.ArticleRecord) error {
	if f.fail {
		return errors.New("store down")
	}
	f.records[record.ID] = record
	return nil
}

func (f *fakeDocuments) RecentWithEmbeddings(_ context.Context, since time.Time) ([]model.ArticleRecord, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	var out []model.ArticleRecord
	for _, r := range f.records {
		if len(r.Embedding) > 0 && !r.LastUpdated.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDocuments) Bump(_ context.Context, id string, views, reports int, flagged *bool) error {
	r, ok := f.records[id]
	if !ok {
		return errors.New("no such record")
	}
	r.TotalViews += views
	r.TotalReports += reports
	if flagged != nil {
		r.CommunityFlagged = *flagged
	}
	f.records[id] = r
	return nil
}

func newTestTiers(t *testing.T, docs DocumentStore, embedder *mapEmbedder) (*Tiers, *VectorIndex) {
	t.Helper()
	index, err := OpenVectorIndex(":memory:", DefaultRetention)
	if err != nil {
		t.Fatalf("open vector index: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	cfg := model.DefaultConfig().Cache
	return NewTiers(docs, index, embedder, nil, cfg, zap.NewNop()), index
}

func TestTiersExactHit(t *testing.T) {
	docs := newFakeDocuments()
	url, text := "https://example.com/a", "some analyzed article text"
	id := extract.ContentID(url, text)
	docs.records[id] = model.ArticleRecord{
		ID: id, Score: 0.87, Prediction: model.LabelReal, Explanation: "checked",
	}

	tiers, _ := newTestTiers(t, docs, &mapEmbedder{})
	resp := tiers.Lookup(context.Background(), url, text)
	if resp == nil {
		t.Fatal("want exact hit")
	}
	if resp.Source != model.SourceExact || resp.Score != 87 || resp.ArticleID != id {
		t.Errorf("resp = %+v", resp)
	}
	if docs.records[id].TotalViews != 1 {
		t.Errorf("views = %d, want 1", docs.records[id].TotalViews)
	}
}

func TestTiersSemanticDocHit(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["other"] = model.ArticleRecord{
		ID: "other", Score: 0.6, Prediction: model.LabelFake, Explanation: "previously judged",
		Embedding: []float32{1, 0, 0}, LastUpdated: time.Now(),
	}

	embedder := &mapEmbedder{vectors: map[string][]float32{
		"near duplicate text": {1, 0, 0},
	}}
	tiers, _ := newTestTiers(t, docs, embedder)

	resp := tiers.Lookup(context.Background(), "https://example.com/b", "near duplicate text")
	if resp == nil {
		t.Fatal("want semantic document hit")
	}
	if resp.Source != model.SourceDocSemantic || resp.ArticleID != "other" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Similarity < 0.99 {
		t.Errorf("similarity = %v, want ~1", resp.Similarity)
	}
}

func TestTiersSemanticDocWindowExcludesStale(t *testing.T) {
	docs := newFakeDocuments()
	docs.records["stale"] = model.ArticleRecord{
		ID: "stale", Embedding: []float32{1, 0, 0},
		LastUpdated: time.Now().AddDate(0, 0, -45),
	}

	embedder := &mapEmbedder{vectors: map[string][]float32{"query": {1, 0, 0}}}
	tiers, _ := newTestTiers(t, docs, embedder)

	if resp := tiers.Lookup(context.Background(), "", "query"); resp != nil {
		t.Fatalf("stale document matched: %+v", resp)
	}
}

func TestTiersVectorHit(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{"flagged text": {0, 1, 0}}}
	tiers, index := newTestTiers(t, newFakeDocuments(), embedder)

	entry := VectorEntry{
		ID: "fb-1", Namespace: NamespaceVerified, Embedding: []float32{0, 1, 0},
		Score: 0.2, Prediction: model.LabelFake, Explanation: "confirmed fake",
	}
	if err := index.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resp := tiers.Lookup(context.Background(), "", "flagged text")
	if resp == nil {
		t.Fatal("want vector hit")
	}
	if resp.Source != model.SourceVectorCache || resp.Prediction != model.LabelFake {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTiersFullMiss(t *testing.T) {
	tiers, _ := newTestTiers(t, newFakeDocuments(), &mapEmbedder{})
	if resp := tiers.Lookup(context.Background(), "", "never seen before"); resp != nil {
		t.Fatalf("want miss, got %+v", resp)
	}
}

func TestTiersStoreFailureIsMiss(t *testing.T) {
	docs := newFakeDocuments()
	docs.fail = true
	tiers, _ := newTestTiers(t, docs, &mapEmbedder{})
	if resp := tiers.Lookup(context.Background(), "", "anything"); resp != nil {
		t.Fatalf("want miss on store failure, got %+v", resp)
	}
}

func TestTiersStoreThenExactLookup(t *testing.T) {
	docs := newFakeDocuments()
	embedder := &mapEmbedder{vectors: map[string][]float32{"fresh text": {0, 1, 1}}}
	tiers, _ := newTestTiers(t, docs, embedder)

	ctx := context.Background()
	summary := model.Summary{Score: 90, Prediction: model.LabelReal, Explanation: "looks right"}

	id := tiers.Store(ctx, "https://example.com/c", "fresh text", summary, "user-1")
	if id != extract.ContentID("https://example.com/c", "fresh text") {
		t.Fatalf("unstable article id %s", id)
	}

	resp := tiers.Lookup(ctx, "https://example.com/c", "fresh text")
	if resp == nil || resp.Source != model.SourceExact || resp.ArticleID != id {
		t.Fatalf("second submission = %+v, want exact hit", resp)
	}
}

func TestTiersStoreMergesExisting(t *testing.T) {
	docs := newFakeDocuments()
	tiers, _ := newTestTiers(t, docs, &mapEmbedder{})

	ctx := context.Background()
	url, text := "https://example.com/d", "merged article"
	id := extract.ContentID(url, text)

	tiers.Store(ctx, url, text, model.Summary{Score: 80, Prediction: model.LabelReal}, "alice")
	docs.records[id] = withCounters(docs.records[id], 5, 1)
	tiers.Store(ctx, url, text, model.Summary{Score: 40, Prediction: model.LabelReal}, "bob")

	got := docs.records[id]
	if math.Abs(got.Score-0.6) > 1e-9 {
		t.Errorf("merged score = %v, want 0.6", got.Score)
	}
	if len(got.ConfirmedBy) != 2 {
		t.Errorf("confirmed by = %v, want both users", got.ConfirmedBy)
	}
	if got.TotalViews != 5 || got.TotalReports != 1 {
		t.Errorf("counters lost on merge: %+v", got)
	}
}

func withCounters(r model.ArticleRecord, views, reports int) model.ArticleRecord {
	r.TotalViews = views
	r.TotalReports = reports
	return r
}

func TestVectorIndexRoundTrip(t *testing.T) {
	index, err := OpenVectorIndex(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer index.Close()

	ctx := context.Background()
	entry := VectorEntry{ID: "v1", Embedding: []float32{1, 2, 3}, Score: 0.5, Prediction: model.LabelMisleading}
	if err := index.Upsert(ctx, entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := index.Fetch(ctx, NamespaceDefault, "v1")
	if err != nil || got == nil {
		t.Fatalf("fetch: %v, %v", got, err)
	}
	if got.Prediction != model.LabelMisleading || len(got.Embedding) != 3 {
		t.Errorf("fetched = %+v", got)
	}

	if err := index.Delete(ctx, NamespaceDefault, "v1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := index.Fetch(ctx, NamespaceDefault, "v1"); got != nil {
		t.Error("entry survived delete")
	}
}

func TestVectorIndexQueryRanksBySimilarity(t *testing.T) {
	index, err := OpenVectorIndex(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer index.Close()

	ctx := context.Background()
	for id, vec := range map[string][]float32{
		"close": {1, 0.1, 0}, "far": {0, 1, 0}, "mid": {1, 1, 0},
	} {
		if err := index.Upsert(ctx, VectorEntry{ID: id, Embedding: vec}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	matches, err := index.Query(ctx, NamespaceDefault, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 || matches[0].Entry.ID != "close" || matches[1].Entry.ID != "mid" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestVectorIndexSweepExpired(t *testing.T) {
	index, err := OpenVectorIndex(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer index.Close()

	ctx := context.Background()
	expired := VectorEntry{ID: "old", Embedding: []float32{1}, Expiry: time.Now().Add(-time.Minute)}
	live := VectorEntry{ID: "new", Namespace: NamespaceVerified, Embedding: []float32{1}}
	for _, e := range []VectorEntry{expired, live} {
		if err := index.Upsert(ctx, e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	n, err := index.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if got, _ := index.Fetch(ctx, NamespaceVerified, "new"); got == nil {
		t.Error("live entry swept")
	}
}

func TestVectorIndexDeleteNearest(t *testing.T) {
	index, err := OpenVectorIndex(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer index.Close()

	ctx := context.Background()
	if err := index.Upsert(ctx, VectorEntry{ID: "target", Embedding: []float32{0, 1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	id, err := index.DeleteNearest(ctx, []float32{0, 1}, 0.75)
	if err != nil || id != "target" {
		t.Fatalf("DeleteNearest = %q, %v", id, err)
	}

	id, err = index.DeleteNearest(ctx, []float32{0, 1}, 0.75)
	if err != nil || id != "" {
		t.Fatalf("second DeleteNearest = %q, %v, want no match", id, err)
	}
}
