package model

// Relevance classifies how a piece of evidence relates to a claim
type Relevance string

const (
	RelevanceSupports    Relevance = "supports"
	RelevanceContradicts Relevance = "contradicts"
	RelevanceUnrelated   Relevance = "unrelated" // Discarded before scoring
)

// Evidence represents one judged web search result for a claim
type Evidence struct {
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Snippet       string    `json:"snippet"`
	Similarity    float64   `json:"similarity"`     // Claim/snippet cosine similarity [0,1]
	DomainScore   float64   `json:"domain_score"`   // Domain trust [0,1]
	EvidenceScore float64   `json:"evidence_score"` // 0.75*similarity + 0.25*domain_score
	IsNewDomain   bool      `json:"is_new_domain"`  // Domain not yet in the trust store
	Relevance     Relevance `json:"relevance"`
	Confidence    int       `json:"confidence"` // Judge confidence 0-100
}

// CorroborationStatus summarizes how much evidence survived judging
type CorroborationStatus string

const (
	StatusCorroborated CorroborationStatus = "corroborated" // >= 2 evidence items
	StatusWeak         CorroborationStatus = "weak"         // exactly 1
	StatusNoResults    CorroborationStatus = "no_results"   // none
)

// Corroboration is the Corroboration Engine output for a set of claims
type Corroboration struct {
	Status   CorroborationStatus `json:"status"`
	Evidence []Evidence          `json:"evidences"`
}

// EvidenceStrength is the net support signal across evidence: the sum of
// supporting confidences minus contradicting confidences, each scaled to
// [0,1]. The result lives in [-len, +len] but is in practice bounded by the
// top-3 truncation per claim.
func (c Corroboration) EvidenceStrength() float64 {
	var strength float64
	for _, e := range c.Evidence {
		switch e.Relevance {
		case RelevanceSupports:
			strength += float64(e.Confidence) / 100.0
		case RelevanceContradicts:
			strength -= float64(e.Confidence) / 100.0
		}
	}
	return strength
}
