package model

// FactCheckStatus classifies the fact-check corpus for a text
type FactCheckStatus string

const (
	FactCheckNone         FactCheckStatus = "no_fact_checks"
	FactCheckFalse        FactCheckStatus = "predominantly_false"
	FactCheckTrue         FactCheckStatus = "predominantly_true"
	FactCheckMixed        FactCheckStatus = "mixed_ratings"
	FactCheckInconclusive FactCheckStatus = "inconclusive"
	FactCheckAPIError     FactCheckStatus = "api_error" // Non-2xx from the connector
	FactCheckError        FactCheckStatus = "error"     // Transport or decode failure
)

// RatingCategory is the bucketed form of a publisher's textual rating
type RatingCategory string

const (
	RatingFalse   RatingCategory = "false"
	RatingTrue    RatingCategory = "true"
	RatingMixed   RatingCategory = "mixed"
	RatingUnknown RatingCategory = "unknown"
)

// FactCheckRecord is one professional fact-check review
type FactCheckRecord struct {
	Claim     string         `json:"claim"`
	Publisher string         `json:"publisher"`
	Rating    string         `json:"rating"` // Raw textual rating, lowercased
	Category  RatingCategory `json:"rating_category"`
	Title     string         `json:"title"`
	URL       string         `json:"url"`
}

// FactCheckSummary is the derived per-request view over all reviews.
// It is always well-formed: connector failures produce a summary with an
// error status and zero counts, never an error return.
type FactCheckSummary struct {
	Status     FactCheckStatus   `json:"status"`
	FactChecks []FactCheckRecord `json:"fact_checks"`
	Total      int               `json:"total"`
	FalseCount int               `json:"false_count"`
	TrueCount  int               `json:"true_count"`
	MixedCount int               `json:"mixed_count"`
}

// Empty returns a well-formed summary carrying only a status.
func EmptyFactCheckSummary(status FactCheckStatus) FactCheckSummary {
	return FactCheckSummary{Status: status, FactChecks: []FactCheckRecord{}}
}
