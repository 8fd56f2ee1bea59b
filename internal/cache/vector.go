package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"veridex/internal/embedding"
	"veridex/internal/model"
)

// Vector index namespaces. General analysis results and user-confirmed
// fakes are kept apart so feedback matches can be trusted more.
const (
	NamespaceDefault  = "default"
	NamespaceVerified = "verified_fakes"
)

// DefaultRetention is how long vector entries live before the sweep
// removes them
const DefaultRetention = 15 * 24 * time.Hour

// VectorEntry is one row of the vector index
type VectorEntry struct {
	ID          string      `json:"id"`
	Namespace   string      `json:"namespace"`
	Embedding   []float32   `json:"embedding"`
	Score       float64     `json:"score"`
	Prediction  model.Label `json:"prediction"`
	Explanation string      `json:"explanation"`
	Text        string      `json:"text"`
	Expiry      time.Time   `json:"ttl_expiry"`
}

// Match pairs an entry with its similarity to the query vector
type Match struct {
	Entry      VectorEntry
	Similarity float64
}

// VectorIndex is a SQLite-backed nearest-neighbor index. Embeddings are
// stored as JSON and similarity is computed in process, which is plenty
// for the few thousand entries the retention window allows to exist.
type VectorIndex struct {
	db        *sql.DB
	retention time.Duration
}

const vectorSchema = `
CREATE TABLE IF NOT EXISTS vectors (
	namespace   TEXT NOT NULL,
	id          TEXT NOT NULL,
	embedding   TEXT NOT NULL,
	score       REAL NOT NULL DEFAULT 0,
	prediction  TEXT NOT NULL DEFAULT '',
	explanation TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	ttl_expiry  INTEGER NOT NULL,
	PRIMARY KEY (namespace, id)
);
CREATE INDEX IF NOT EXISTS idx_vectors_expiry ON vectors(ttl_expiry);
`

// OpenVectorIndex opens (and if needed creates) the index at path.
// Pass ":memory:" for an ephemeral index.
func OpenVectorIndex(path string, retention time.Duration) (*VectorIndex, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector index %s: %w", path, err)
	}
	if _, err := db.Exec(vectorSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init vector schema: %w", err)
	}

	return &VectorIndex{db: db, retention: retention}, nil
}

// Close releases the underlying database
func (x *VectorIndex) Close() error {
	return x.db.Close()
}

// Upsert writes an entry, stamping the retention expiry when unset
func (x *VectorIndex) Upsert(ctx context.Context, entry VectorEntry) error {
	if entry.Namespace == "" {
		entry.Namespace = NamespaceDefault
	}
	if entry.Expiry.IsZero() {
		entry.Expiry = time.Now().Add(x.retention)
	}

	blob, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding for %s: %w", entry.ID, err)
	}

	_, err = x.db.ExecContext(ctx, `
		INSERT INTO vectors (namespace, id, embedding, score, prediction, explanation, text, ttl_expiry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, id) DO UPDATE SET
			embedding = excluded.embedding,
			score = excluded.score,
			prediction = excluded.prediction,
			explanation = excluded.explanation,
			text = excluded.text,
			ttl_expiry = excluded.ttl_expiry`,
		entry.Namespace, entry.ID, string(blob), entry.Score,
		string(entry.Prediction), entry.Explanation, entry.Text, entry.Expiry.Unix())
	if err != nil {
		return fmt.Errorf("upsert vector %s/%s: %w", entry.Namespace, entry.ID, err)
	}
	return nil
}

// Fetch returns one entry by id, nil when absent or expired
func (x *VectorIndex) Fetch(ctx context.Context, namespace, id string) (*VectorEntry, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT namespace, id, embedding, score, prediction, explanation, text, ttl_expiry
		FROM vectors WHERE namespace = ? AND id = ? AND ttl_expiry > ?`,
		namespace, id, time.Now().Unix())

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch vector %s/%s: %w", namespace, id, err)
	}
	return entry, nil
}

// Query returns the topK unexpired entries of a namespace most similar
// to the query vector, best first
func (x *VectorIndex) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 3
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT namespace, id, embedding, score, prediction, explanation, text, ttl_expiry
		FROM vectors WHERE namespace = ? AND ttl_expiry > ?`,
		namespace, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("query vectors in %s: %w", namespace, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("decode vector row: %w", err)
		}
		matches = append(matches, Match{
			Entry:      *entry,
			Similarity: embedding.CosineSimilarity(vec, entry.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan vectors in %s: %w", namespace, err)
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Similarity > matches[b].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes one entry
func (x *VectorIndex) Delete(ctx context.Context, namespace, id string) error {
	if _, err := x.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE namespace = ? AND id = ?`, namespace, id); err != nil {
		return fmt.Errorf("delete vector %s/%s: %w", namespace, id, err)
	}
	return nil
}

// DeleteNearest removes the single closest entry to vec across all
// namespaces, provided it clears the similarity threshold. Returns the
// deleted id, empty when nothing matched.
func (x *VectorIndex) DeleteNearest(ctx context.Context, vec []float32, threshold float64) (string, error) {
	var best *Match
	for _, ns := range []string{NamespaceDefault, NamespaceVerified} {
		matches, err := x.Query(ctx, ns, vec, 1)
		if err != nil {
			return "", err
		}
		if len(matches) > 0 && (best == nil || matches[0].Similarity > best.Similarity) {
			m := matches[0]
			best = &m
		}
	}
	if best == nil || best.Similarity < threshold {
		return "", nil
	}
	if err := x.Delete(ctx, best.Entry.Namespace, best.Entry.ID); err != nil {
		return "", err
	}
	return best.Entry.ID, nil
}

// SweepExpired deletes all entries past their expiry in every namespace
// and reports how many were removed
func (x *VectorIndex) SweepExpired(ctx context.Context) (int, error) {
	res, err := x.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE ttl_expiry <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep expired vectors: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*VectorEntry, error) {
	var entry VectorEntry
	var blob, prediction string
	var expiry int64
	if err := row.Scan(&entry.Namespace, &entry.ID, &blob, &entry.Score,
		&prediction, &entry.Explanation, &entry.Text, &expiry); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(blob), &entry.Embedding); err != nil {
		return nil, err
	}
	entry.Prediction = model.Label(prediction)
	entry.Expiry = time.Unix(expiry, 0)
	return &entry, nil
}
