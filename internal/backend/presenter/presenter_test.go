package presenter

import (
	"math"
	"testing"

	"github.com/jo-hoe/breedid/internal/backend/breeds"
)

func newTestPresenter(t *testing.T, classes []string) *Presenter {
	t.Helper()
	catalog, err := breeds.New([]breeds.Info{
		{Name: "Gir", Type: "cattle", Origin: "Gujarat", Description: "Domed forehead, long ears."},
		{Name: "Murrah", Type: "buffalo", Origin: "Haryana", Description: "Jet black with curled horns."},
		{Name: "Sahiwal", Type: "cattle", Origin: "Punjab", Description: "Reddish dun dairy breed."},
	})
	if err != nil {
		t.Fatalf("breeds.New error: %v", err)
	}
	p, err := New(classes, catalog)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return p
}

func TestNew_RequiresThreeClasses(t *testing.T) {
	catalog, _ := breeds.New(nil)
	if _, err := New([]string{"Gir", "Murrah"}, catalog); err == nil {
		t.Error("Expected error for fewer than three classes")
	}
	if _, err := New([]string{"a", "b", "c"}, nil); err == nil {
		t.Error("Expected error for nil catalog")
	}
}

func TestPresent_TopThreeOrdered(t *testing.T) {
	p := newTestPresenter(t, []string{"Gir", "Kankrej", "Murrah", "Sahiwal", "Tharparkar"})

	result, err := p.Present([]float32{0.05, 0.10, 0.60, 0.20, 0.05})
	if err != nil {
		t.Fatalf("Present error: %v", err)
	}
	if len(result.Predictions) != TopK {
		t.Fatalf("Expected %d predictions, got %d", TopK, len(result.Predictions))
	}

	expected := []string{"Murrah", "Sahiwal", "Kankrej"}
	for i, prediction := range result.Predictions {
		if prediction.Breed != expected[i] {
			t.Errorf("rank %d: expected %s, got %s", i+1, expected[i], prediction.Breed)
		}
		if prediction.Rank != i+1 {
			t.Errorf("expected rank %d, got %d", i+1, prediction.Rank)
		}
		if i > 0 && prediction.Confidence > result.Predictions[i-1].Confidence {
			t.Errorf("confidences must be non-increasing: %v", result.Predictions)
		}
	}
	if result.Top().ClassIndex != 2 {
		t.Errorf("Expected top class index 2, got %d", result.Top().ClassIndex)
	}
}

func TestPresent_CatalogInfo(t *testing.T) {
	p := newTestPresenter(t, []string{"Gir", "Kankrej", "Murrah"})

	result, err := p.Present([]float32{0.8, 0.15, 0.05})
	if err != nil {
		t.Fatalf("Present error: %v", err)
	}

	gir := result.Predictions[0]
	if gir.Info == nil {
		t.Fatal("Expected Gir to carry catalog info")
	}
	if gir.Info.Type == "" || gir.Info.Origin == "" || gir.Info.Description == "" {
		t.Errorf("Expected non-empty info fields, got %+v", gir.Info)
	}

	kankrej := result.Predictions[1]
	if kankrej.Breed != "Kankrej" {
		t.Fatalf("Expected Kankrej second, got %s", kankrej.Breed)
	}
	if kankrej.Info != nil {
		t.Errorf("Expected missing catalog entry to omit info, got %+v", kankrej.Info)
	}
}

func TestPresent_TieBreakLowestIndex(t *testing.T) {
	p := newTestPresenter(t, []string{"a", "b", "c", "d", "e"})

	result, err := p.Present([]float32{0.1, 0.3, 0.2, 0.2, 0.2})
	if err != nil {
		t.Fatalf("Present error: %v", err)
	}
	got := []int{result.Predictions[0].ClassIndex, result.Predictions[1].ClassIndex, result.Predictions[2].ClassIndex}
	expected := []int{1, 2, 3}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Expected class indices %v, got %v", expected, got)
		}
	}
}

func TestPresent_ClampsOutOfRange(t *testing.T) {
	p := newTestPresenter(t, []string{"a", "b", "c", "d"})

	nan := float32(math.NaN())
	result, err := p.Present([]float32{1.7, -0.4, nan, 0.3})
	if err != nil {
		t.Fatalf("Present error: %v", err)
	}
	for _, prediction := range result.Predictions {
		if prediction.Confidence < 0 || prediction.Confidence > 1 {
			t.Errorf("confidence out of range: %v", prediction.Confidence)
		}
	}
	if result.Top().Breed != "a" || result.Top().Confidence != 1 {
		t.Errorf("Expected clamped top a=1, got %+v", result.Top())
	}
	if result.Predictions[1].Breed != "d" {
		t.Errorf("Expected d second, got %s", result.Predictions[1].Breed)
	}
}

func TestPresent_LengthMismatch(t *testing.T) {
	p := newTestPresenter(t, []string{"a", "b", "c"})
	if _, err := p.Present([]float32{0.5, 0.5}); err == nil {
		t.Error("Expected error for length mismatch")
	}
}

func TestPresent_Idempotent(t *testing.T) {
	p := newTestPresenter(t, []string{"Gir", "Murrah", "Sahiwal", "Ongole"})
	probs := []float32{0.25, 0.25, 0.4, 0.1}

	first, err := p.Present(probs)
	if err != nil {
		t.Fatalf("Present error: %v", err)
	}
	second, err := p.Present(probs)
	if err != nil {
		t.Fatalf("Present error: %v", err)
	}
	for i := range first.Predictions {
		if first.Predictions[i].Breed != second.Predictions[i].Breed ||
			first.Predictions[i].Confidence != second.Predictions[i].Confidence {
			t.Fatalf("Results differ at rank %d: %+v vs %+v", i+1, first.Predictions[i], second.Predictions[i])
		}
	}
}

func TestConfidenceLevel(t *testing.T) {
	tests := []struct {
		confidence float32
		expected   string
	}{
		{0.95, LevelHigh},
		{0.71, LevelHigh},
		{0.7, LevelMedium},
		{0.51, LevelMedium},
		{0.5, LevelLow},
		{0, LevelLow},
	}
	for _, tt := range tests {
		if got := ConfidenceLevel(tt.confidence); got != tt.expected {
			t.Errorf("ConfidenceLevel(%v) = %s, expected %s", tt.confidence, got, tt.expected)
		}
	}
}
