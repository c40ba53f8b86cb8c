package classifier

import (
	"fmt"
	"strings"
)

// Model runs a single forward pass over a preprocessed image tensor and
// returns the score vector over the full class set.
type Model interface {
	Infer(tensor []float32) ([]float32, error)
	InputShape() []int64
	OutputShape() []int64
	Close() error
}

// Activation is applied to the raw model output before it is presented.
type Activation string

const (
	ActivationNone    Activation = "none"
	ActivationSoftmax Activation = "softmax"
)

// ParseActivation normalizes an activation name; empty means none.
func ParseActivation(name string) (Activation, error) {
	switch Activation(strings.ToLower(strings.TrimSpace(name))) {
	case "", ActivationNone:
		return ActivationNone, nil
	case ActivationSoftmax:
		return ActivationSoftmax, nil
	default:
		return "", fmt.Errorf("unsupported output activation: %s", name)
	}
}

// ShapeSize returns the number of elements of a tensor with the given shape.
func ShapeSize(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range shape {
		size *= int(dim)
	}
	return size
}
