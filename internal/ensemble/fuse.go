// Package ensemble turns independent veracity signals into per-claim
// verdicts and folds those into one overall decision.
package ensemble

import (
	"math"

	"veridex/internal/model"
)

const (
	evidenceWeight   = 0.6
	reasonerWeight   = 0.25
	classifierWeight = 0.15
)

// Fuse combines the fact-check status, the reasoning verdict, the
// classifier probabilities, and corroboration strength into one label
// and confidence for a single claim.
//
// Fact-check findings take absolute priority. Otherwise three
// probability estimates are blended per label and the argmax wins, with
// the evidence channel contributing only to Real and Fake. The final
// confidence is nudged by how much corroboration was found.
func Fuse(
	opinion model.ReasonerOpinion,
	scores model.ClassifierScores,
	factStatus model.FactCheckStatus,
	corrStatus model.CorroborationStatus,
	evidenceStrength float64,
) model.EnsembleDecision {
	gemConf := float64(opinion.Confidence)

	switch factStatus {
	case model.FactCheckFalse:
		return model.EnsembleDecision{
			FinalPrediction: model.LabelFake,
			FinalConfidence: int(math.Min(97, gemConf+10)),
		}
	case model.FactCheckTrue:
		return model.EnsembleDecision{
			FinalPrediction: model.LabelReal,
			FinalConfidence: int(math.Min(98, math.Max(gemConf, 85)+10)),
		}
	case model.FactCheckMixed:
		return model.EnsembleDecision{
			FinalPrediction: model.LabelMisleading,
			FinalConfidence: int(math.Max(70, gemConf)),
		}
	}

	// non-factual content skips the blend entirely
	if opinion.Prediction == model.LabelNotApplicable {
		return model.EnsembleDecision{
			FinalPrediction: model.LabelNotApplicable,
			FinalConfidence: opinion.Confidence,
		}
	}

	if corrStatus == model.StatusNoResults && factStatus == model.FactCheckNone {
		return model.EnsembleDecision{FinalPrediction: model.LabelUnknown, FinalConfidence: 60}
	}

	gemReal, gemFake, gemMis := reasonerPriors(opinion.Prediction)
	evReal := clamp01(0.5 + 0.5*evidenceStrength)

	realScore := evidenceWeight*evReal + reasonerWeight*gemReal + classifierWeight*scores.Real
	fakeScore := evidenceWeight*(1-evReal) + reasonerWeight*gemFake + classifierWeight*scores.Fake
	misScore := reasonerWeight*gemMis + classifierWeight*scores.Misleading*0.8

	total := realScore + fakeScore + misScore
	if total <= 0 {
		return model.EnsembleDecision{FinalPrediction: model.LabelUnknown, FinalConfidence: 60}
	}

	label := model.LabelReal
	best := realScore
	if fakeScore > best {
		label, best = model.LabelFake, fakeScore
	}
	if misScore > best {
		label, best = model.LabelMisleading, misScore
	}

	confidence := 100 * best / total
	switch corrStatus {
	case model.StatusCorroborated:
		if evidenceStrength > 0.4 {
			confidence += 10
		}
	case model.StatusWeak:
		confidence = math.Max(60, confidence-5)
	case model.StatusNoResults:
		confidence = math.Max(55, confidence-10)
	}
	if confidence > 100 {
		confidence = 100
	}

	return model.EnsembleDecision{FinalPrediction: label, FinalConfidence: int(confidence)}
}

// reasonerPriors maps a named verdict to a coarse probability triple.
// An unrecognized verdict carries almost no weight at all.
func reasonerPriors(prediction model.Label) (real, fake, misleading float64) {
	switch prediction {
	case model.LabelReal:
		return 0.7, 0.15, 0.15
	case model.LabelFake:
		return 0.15, 0.7, 0.15
	case model.LabelMisleading:
		return 0.15, 0.15, 0.6
	default:
		return 0.15, 0.15, 0.1
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
