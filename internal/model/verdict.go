package model

// ReasonerOpinion is the reasoning model's standalone take on a claim
type ReasonerOpinion struct {
	Prediction Label `json:"prediction"`
	Confidence int   `json:"confidence"`
}

// EnsembleDecision is the fused (label, confidence) for one claim
type EnsembleDecision struct {
	FinalPrediction Label `json:"final_prediction"`
	FinalConfidence int   `json:"final_confidence"`
}

// ClaimVerdict is the complete per-claim record produced by Phase 3.
// Ephemeral within a single pipeline run.
type ClaimVerdict struct {
	ClaimText        string           `json:"claim_text"`
	Reasoner         ReasonerOpinion  `json:"reasoner"`
	Classifier       ClassifierScores `json:"classifier"`
	FactCheck        FactCheckSummary `json:"fact_check"`
	Corroboration    Corroboration    `json:"corroboration"`
	Ensemble         EnsembleDecision `json:"ensemble"`
	Explanation      string           `json:"explanation"`
	EvidenceStrength float64          `json:"evidence_strength"`
}

// Summary is the aggregated outcome across all claims of one input
type Summary struct {
	Score       int    `json:"score"` // 0-100
	Prediction  Label  `json:"prediction"`
	Explanation string `json:"explanation"`
}

// AnalysisResult is the full pipeline output for a fresh analysis
type AnalysisResult struct {
	Summary       Summary        `json:"summary"`
	RuntimeSec    float64        `json:"runtime"`
	ClaimsChecked int            `json:"claims_checked"`
	Details       []ClaimVerdict `json:"raw_details"`
}

// ResultSource names the layer that produced an AnalysisResponse
type ResultSource string

const (
	SourceExact       ResultSource = "firestore_exact"    // Content-hash document hit
	SourceDocSemantic ResultSource = "firestore_semantic" // Document embedding match
	SourceVectorCache ResultSource = "semantic_cache"     // Vector-index match
	SourceNewAnalysis ResultSource = "new_analysis"       // Full pipeline run
)

// AnalysisResponse is the exposed analyze() result shape
type AnalysisResponse struct {
	Score         int            `json:"score"` // 0-100
	Prediction    Label          `json:"prediction"`
	Explanation   string         `json:"explanation"`
	ArticleID     string         `json:"article_id"`
	Source        ResultSource   `json:"source"`
	SessionID     string         `json:"session_id,omitempty"`
	Details       []ClaimVerdict `json:"details,omitempty"`
	RuntimeSec    float64        `json:"runtime,omitempty"`
	ClaimsChecked int            `json:"claims_checked,omitempty"`
	Similarity    float64        `json:"similarity,omitempty"` // Set on semantic cache hits
}
