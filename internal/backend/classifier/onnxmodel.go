package classifier

import (
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Options configures the ONNX Runtime backed model.
type Options struct {
	Path              string
	SharedLibraryPath string
	InputName         string
	OutputName        string
	InputShape        []int64
	OutputShape       []int64
	Activation        Activation
}

// ONNXModel holds one ONNX Runtime session with preallocated tensors. The
// tensors are shared between calls, so runs are serialized.
type ONNXModel struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   []int64
	outputShape  []int64
	activation   Activation
}

// NewONNXModel initializes the runtime environment and loads the model
// weights. It is meant to be called once per process.
func NewONNXModel(options Options) (*ONNXModel, error) {
	if options.Path == "" {
		return nil, fmt.Errorf("model path is empty")
	}
	if ShapeSize(options.InputShape) <= 0 || ShapeSize(options.OutputShape) <= 0 {
		return nil, fmt.Errorf("model input and output shapes must be set, got %v and %v", options.InputShape, options.OutputShape)
	}

	if options.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(options.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(options.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(options.OutputShape...))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(options.Path,
		[]string{options.InputName}, []string{options.OutputName},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", options.Path, err)
	}

	slog.Info("model loaded",
		"path", options.Path,
		"input_name", options.InputName,
		"output_name", options.OutputName,
		"input_shape", options.InputShape,
		"output_shape", options.OutputShape,
		"activation", options.Activation)

	return &ONNXModel{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   options.InputShape,
		outputShape:  options.OutputShape,
		activation:   options.Activation,
	}, nil
}

// Infer runs the model on a tensor laid out as InputShape and returns a
// fresh copy of the (activated) output.
func (m *ONNXModel) Infer(tensor []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	input := m.inputTensor.GetData()
	if len(tensor) != len(input) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(input), len(tensor))
	}
	copy(input, tensor)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return m.activation.Apply(m.outputTensor.GetData()), nil
}

func (m *ONNXModel) InputShape() []int64 {
	return m.inputShape
}

func (m *ONNXModel) OutputShape() []int64 {
	return m.outputShape
}

// Close releases the session, tensors and the runtime environment.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.session != nil {
		keep(m.session.Destroy())
		m.session = nil
	}
	if m.inputTensor != nil {
		keep(m.inputTensor.Destroy())
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		keep(m.outputTensor.Destroy())
		m.outputTensor = nil
	}
	keep(ort.DestroyEnvironment())
	return firstErr
}
