// Package coretest builds CoreService instances backed by a fake model.
package coretest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jo-hoe/breedid/internal/backend/classifier"
	"github.com/jo-hoe/breedid/internal/core"
)

// BreedsJSON is a small catalog; its sorted names are the default classes.
const BreedsJSON = `{
  "Gir": {"Type": "Cattle", "Origin": "Gujarat", "Description": "Dairy breed with a domed forehead and long pendulous ears."},
  "Murrah": {"Type": "Buffalo", "Origin": "Haryana", "Description": "High yielding dairy buffalo with tightly curled horns."},
  "Sahiwal": {"Type": "Cattle", "Origin": "Punjab", "Description": "Heat tolerant dairy breed with a reddish brown coat."},
  "Tharparkar": {"Type": "Cattle", "Origin": "Rajasthan", "Description": "Dual purpose breed with a white or light grey coat."}
}`

// FakeModel returns the same scores for every input.
type FakeModel struct {
	mu         sync.Mutex
	scores     []float32
	inputShape []int64
	calls      int
}

func NewFakeModel(scores ...float32) *FakeModel {
	return &FakeModel{scores: scores}
}

func (m *FakeModel) Infer(tensor []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if want := classifier.ShapeSize(m.inputShape); len(tensor) != want {
		return nil, fmt.Errorf("expected %d input values, got %d", want, len(tensor))
	}
	out := make([]float32, len(m.scores))
	copy(out, m.scores)
	return out, nil
}

func (m *FakeModel) InputShape() []int64  { return m.inputShape }
func (m *FakeModel) OutputShape() []int64 { return []int64{1, int64(len(m.scores))} }
func (m *FakeModel) Close() error         { return nil }

func (m *FakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Loader hands the fake to NewCoreService, adopting the requested input shape.
func (m *FakeModel) Loader() core.ModelLoader {
	return func(options classifier.Options) (classifier.Model, error) {
		m.inputShape = options.InputShape
		return m, nil
	}
}

// NewConfig returns a config with an in-memory database and a tiny input size.
func NewConfig(t testing.TB) *core.ServiceConfig {
	t.Helper()
	dir := t.TempDir()
	breedsPath := filepath.Join(dir, "breeds.json")
	if err := os.WriteFile(breedsPath, []byte(BreedsJSON), 0644); err != nil {
		t.Fatalf("failed to write breeds file: %v", err)
	}

	config := core.DefaultConfig()
	config.Model.Path = filepath.Join(dir, "model.onnx")
	config.Model.InputShape = []int64{1, 8, 8, 3}
	config.Breeds.Path = breedsPath
	config.Database.ConnectionString = ":memory:"
	config.ThumbnailWidth = 16
	return config
}

// NewService creates a CoreService over NewConfig and the given model.
func NewService(t testing.TB, model *FakeModel) *core.CoreService {
	t.Helper()
	svc, err := core.NewCoreService(NewConfig(t), model.Loader())
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// PNG encodes a solid 40x30 image.
func PNG(t testing.TB, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}
