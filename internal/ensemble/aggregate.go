package ensemble

import (
	"math"
	"strings"

	"veridex/internal/model"
)

// Aggregate folds per-claim verdicts into one overall summary. The
// label with a strict majority wins outright; otherwise the tie breaks
// to the label whose claims average the highest confidence. The final
// confidence is dampened so a single claim cannot dominate.
func Aggregate(verdicts []model.ClaimVerdict) model.Summary {
	if len(verdicts) == 0 {
		return model.Summary{Prediction: model.LabelUnknown, Score: 60}
	}

	type bucket struct {
		count   int
		confSum float64
	}
	buckets := make(map[model.Label]*bucket)
	for _, v := range verdicts {
		b := buckets[v.Ensemble.FinalPrediction]
		if b == nil {
			b = &bucket{}
			buckets[v.Ensemble.FinalPrediction] = b
		}
		b.count++
		b.confSum += float64(v.Ensemble.FinalConfidence)
	}

	var chosen model.Label
	var chosenBucket *bucket
	for label, b := range buckets {
		if chosenBucket == nil || b.count > chosenBucket.count {
			chosen, chosenBucket = label, b
		}
	}

	if chosenBucket.count*2 <= len(verdicts) {
		// no strict majority: highest average confidence wins
		bestAvg := -1.0
		for label, b := range buckets {
			avg := b.confSum / float64(b.count)
			if avg > bestAvg {
				chosen, chosenBucket, bestAvg = label, b, avg
			}
		}
	}

	avg := chosenBucket.confSum / float64(chosenBucket.count)
	confidence := avg * (0.65 + 0.35*math.Log(1+float64(chosenBucket.count)))
	if confidence > 100 {
		confidence = 100
	}

	return model.Summary{
		Prediction:  chosen,
		Score:       int(confidence),
		Explanation: joinExplanations(verdicts),
	}
}

func joinExplanations(verdicts []model.ClaimVerdict) string {
	var parts []string
	for _, v := range verdicts {
		if v.Explanation != "" {
			parts = append(parts, v.Explanation)
		}
		if len(parts) == 3 {
			break
		}
	}
	return strings.Join(parts, " | ")
}
