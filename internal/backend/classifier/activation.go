package classifier

import "math"

// Softmax converts logits into probabilities. The maximum is subtracted
// first so large logits do not overflow.
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}

	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		out[i] = float32(e)
		sum += e
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// Apply runs the activation over raw scores and returns a new slice.
func (a Activation) Apply(scores []float32) []float32 {
	if a == ActivationSoftmax {
		return Softmax(scores)
	}
	out := make([]float32, len(scores))
	copy(out, scores)
	return out
}
