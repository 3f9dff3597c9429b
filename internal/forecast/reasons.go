package forecast

import (
	"sort"

	"github.com/qa-forecast/backend/internal/model"
	"github.com/qa-forecast/backend/internal/storage/models"
)

// NAReason fills unused rejection-reason slots.
const NAReason = "N/A"

// ReasonModel pairs the trained rejection classifier with its class labels.
// A nil ReasonModel means the classifier was skipped for lack of data and
// every slot is padded.
type ReasonModel struct {
	Classifier model.ProbClassifier
	Classes    []string
}

// Top returns up to topN (reason, probability) pairs in descending
// probability order. Ties break on class order so output is deterministic.
func (m *ReasonModel) Top(x []float64, topN int) []models.ReasonProbability {
	proba := m.Classifier.PredictProba(x)
	order := make([]int, len(proba))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return proba[order[a]] > proba[order[b]] })

	if topN > len(order) {
		topN = len(order)
	}
	out := make([]models.ReasonProbability, 0, topN)
	for _, i := range order[:topN] {
		out = append(out, models.ReasonProbability{
			Reason:      m.Classes[i],
			Probability: round4(proba[i]),
		})
	}
	return out
}

// padSlots fits the predicted reasons into the fixed three-column layout,
// padding with ("N/A", 0.0).
func padSlots(reasons []models.ReasonProbability) [models.TopReasonSlots]models.ReasonProbability {
	var slots [models.TopReasonSlots]models.ReasonProbability
	for i := range slots {
		if i < len(reasons) {
			slots[i] = reasons[i]
		} else {
			slots[i] = models.ReasonProbability{Reason: NAReason, Probability: 0.0}
		}
	}
	return slots
}
