package presenter

import (
	"fmt"
	"math"
	"sort"

	"github.com/jo-hoe/breedid/internal/backend/breeds"
)

// TopK is the number of predictions surfaced per image.
const TopK = 3

const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Lookup resolves a class name to its descriptive card.
type Lookup interface {
	Lookup(name string) (breeds.Info, bool)
}

// Prediction is one ranked entry of a result. Info is nil when the breed
// has no catalog entry.
type Prediction struct {
	Rank       int          `json:"rank"`
	ClassIndex int          `json:"classIndex"`
	Breed      string       `json:"breed"`
	Confidence float32      `json:"confidence"`
	Level      string       `json:"level"`
	Info       *breeds.Info `json:"info,omitempty"`
}

// Result holds exactly TopK predictions ordered by descending confidence.
type Result struct {
	Predictions []Prediction `json:"predictions"`
}

// Top returns the best prediction.
func (r *Result) Top() Prediction {
	return r.Predictions[0]
}

// Presenter maps model output to named, described predictions.
type Presenter struct {
	classes []string
	catalog Lookup
}

// New creates a presenter for a fixed class-index-to-name table.
func New(classes []string, catalog Lookup) (*Presenter, error) {
	if len(classes) < TopK {
		return nil, fmt.Errorf("need at least %d classes, got %d", TopK, len(classes))
	}
	if catalog == nil {
		return nil, fmt.Errorf("breed catalog is nil")
	}
	names := make([]string, len(classes))
	copy(names, classes)
	return &Presenter{classes: names, catalog: catalog}, nil
}

func (p *Presenter) Classes() []string {
	out := make([]string, len(p.classes))
	copy(out, p.classes)
	return out
}

// Present selects the TopK classes. Equal confidences keep class index
// order, so the lower index wins a tie.
func (p *Presenter) Present(probabilities []float32) (*Result, error) {
	if len(probabilities) != len(p.classes) {
		return nil, fmt.Errorf("model returned %d scores for %d classes", len(probabilities), len(p.classes))
	}

	scores := make([]float32, len(probabilities))
	for i, v := range probabilities {
		scores[i] = clampConfidence(v)
	}

	indices := make([]int, len(scores))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	result := &Result{Predictions: make([]Prediction, 0, TopK)}
	for rank, idx := range indices[:TopK] {
		name := p.classes[idx]
		prediction := Prediction{
			Rank:       rank + 1,
			ClassIndex: idx,
			Breed:      name,
			Confidence: scores[idx],
			Level:      ConfidenceLevel(scores[idx]),
		}
		if info, ok := p.catalog.Lookup(name); ok {
			prediction.Info = &info
		}
		result.Predictions = append(result.Predictions, prediction)
	}
	return result, nil
}

// ConfidenceLevel buckets a confidence for display.
func ConfidenceLevel(confidence float32) string {
	switch {
	case confidence > 0.7:
		return LevelHigh
	case confidence > 0.5:
		return LevelMedium
	default:
		return LevelLow
	}
}

func clampConfidence(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
