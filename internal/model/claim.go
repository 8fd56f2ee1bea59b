package model

// Claim represents a checkable assertion extracted from the input text
type Claim struct {
	Text     string `json:"text"`               // The claim text itself
	Sentence int    `json:"sentence,omitempty"` // Sentence index in source (0-based)
}

// Label is the verdict assigned to a claim or text
type Label string

const (
	LabelReal          Label = "Real"
	LabelFake          Label = "Fake"
	LabelMisleading    Label = "Misleading"
	LabelUnknown       Label = "Unknown"
	LabelNotApplicable Label = "Not Applicable" // Content without verifiable factual claims
)

// ClassifierScores holds the probability triple returned by the hosted classifier
type ClassifierScores struct {
	Real       float64 `json:"real"`
	Fake       float64 `json:"fake"`
	Misleading float64 `json:"misleading"`
}

// FallbackClassifierScores is the fixed prior used when the classifier
// endpoint is unreachable or returns a malformed response.
func FallbackClassifierScores() ClassifierScores {
	return ClassifierScores{Real: 0.7, Fake: 0.2, Misleading: 0.1}
}

// Metadata is the structured article context extracted by the reasoning model
type Metadata struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Author   string `json:"author"`
	Date     string `json:"date"`
	Source   string `json:"source"`
	Category string `json:"category"`
}
