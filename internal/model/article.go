package model

import "time"

// ArticleRecord is the persisted analysis for one (url, text) input.
// Stored in the document store under the content-hash id; the same record
// (minus counters) is mirrored into the vector index with a retention TTL.
type ArticleRecord struct {
	ID               string    `bson:"_id" json:"id"`                   // sha256(url + text)
	NormalizedID     string    `bson:"normalized_id" json:"normalized_id"` // sha256(url + normalize(text))
	Text             string    `bson:"text" json:"text"`
	URL              string    `bson:"url,omitempty" json:"url,omitempty"`
	Embedding        []float32 `bson:"embedding,omitempty" json:"embedding,omitempty"`
	Score            float64   `bson:"text_score" json:"text_score"` // 0-1
	Prediction       Label     `bson:"prediction" json:"prediction"`
	Explanation      string    `bson:"text_explanation" json:"text_explanation"`
	Verified         bool      `bson:"verified" json:"verified"`
	ConfirmedBy      []string  `bson:"confirmed_by,omitempty" json:"confirmed_by,omitempty"` // anonymized user ids
	TotalViews       int       `bson:"total_views" json:"total_views"`
	TotalReports     int       `bson:"total_reports" json:"total_reports"`
	CommunityFlagged bool      `bson:"community_flagged" json:"community_flagged"`
	LastUpdated      time.Time `bson:"last_updated" json:"last_updated"`
}

// DomainTrustRecord is the running credibility score for one web domain.
// Never deleted; updated via online averaging on each vote.
type DomainTrustRecord struct {
	Domain      string    `bson:"_id" json:"domain"`
	AvgScore    float64   `bson:"avg_score" json:"avg_score"`
	NumVotes    int       `bson:"num_votes" json:"num_votes"`
	LastUpdated time.Time `bson:"last_updated" json:"last_updated"`
}

// Vote folds a new score into the running average,
// (avg*votes + s)/(votes+1), and increments the count.
func (r *DomainTrustRecord) Vote(score float64, at time.Time) {
	r.AvgScore = (r.AvgScore*float64(r.NumVotes) + score) / float64(r.NumVotes+1)
	r.NumVotes++
	r.LastUpdated = at
}
