package imageprocessing

import (
	"fmt"
	"image"
)

// Preprocessor converts a decoded upload into the model input tensor.
// It is stateless and safe for concurrent use.
type Preprocessor struct {
	chain  *CommandInvoker
	resize *ScaleCommand
	spec   TensorSpec
}

// NewPreprocessor builds the configured chain and the final resize to the
// model resolution. The final resize stretches like the Keras image loader.
func NewPreprocessor(spec TensorSpec, chain *CommandInvoker, interpolation string) (*Preprocessor, error) {
	if chain == nil {
		chain = NewCommandInvoker(nil)
	}
	final, err := NewScaleCommandWithParams(spec.Width, spec.Height, ScaleModeStretch, interpolation)
	if err != nil {
		return nil, fmt.Errorf("failed to create model resize: %w", err)
	}
	return &Preprocessor{
		chain:  chain,
		resize: final,
		spec:   spec,
	}, nil
}

func (p *Preprocessor) Spec() TensorSpec {
	return p.spec
}

// Preprocess runs the chain, resizes to the model input and normalizes.
func (p *Preprocessor) Preprocess(img image.Image) ([]float32, error) {
	processed, err := p.chain.Execute(img)
	if err != nil {
		return nil, err
	}
	resized, err := p.resize.Execute(processed)
	if err != nil {
		return nil, err
	}
	return p.spec.ToTensor(resized)
}
