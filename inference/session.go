// Package inference runs crater segmentation models with ONNX Runtime.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrSessionClosed is returned by Predict on a closed session.
var ErrSessionClosed = errors.New("inference: session closed")

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// SetSharedLibraryPath points ONNX Runtime at a specific onnxruntime shared
// library. It only has an effect before the first session is created.
func SetSharedLibraryPath(path string) {
	if path != "" {
		ort.SetSharedLibraryPath(path)
	}
}

func initORT() error {
	ortEnvOnce.Do(func() {
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// TensorNames are the model's input and output tensor names.
type TensorNames struct {
	Input  string
	Output string
}

// DefaultTensorNames returns the names used by the exported crater U-Net.
func DefaultTensorNames() TensorNames {
	return TensorNames{Input: "input", Output: "output"}
}

// Session wraps an ONNX Runtime session of a single-channel segmentation
// model. Calls are serialized; use a Pool for parallel inference.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession loads the model at modelPath.
func NewSession(modelPath string, names TensorNames) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{names.Input},
		[]string{names.Output},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

// Predict runs the model on a row-major grayscale image with values in
// [0,1] and returns a probability map of the same size.
func (s *Session) Predict(ctx context.Context, pixels []float32, width, height int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || len(pixels) != width*height {
		return nil, fmt.Errorf("input has %d pixels, want %dx%d", len(pixels), width, height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(height), int64(width), 1), pixels)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	data := out.GetData()
	if len(data) < width*height {
		return nil, fmt.Errorf("output has %d values, want %d (shape %v)", len(data), width*height, out.GetShape())
	}
	mask := make([]float32, width*height)
	copy(mask, data)
	return mask, nil
}

// Close releases ONNX resources. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
