// Package onnxrt manages the process-wide ONNX Runtime environment.
package onnxrt

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrNoModel is returned when a model path is empty or missing on disk.
var ErrNoModel = errors.New("onnx model not found")

var (
	initOnce sync.Once
	errInit  error
)

// Init loads the shared library at libPath (or the platform default when empty)
// and initializes the environment. Later calls return the first call's result.
func Init(libPath string) error {
	initOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			errInit = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return errInit
}

// CheckModel verifies that a model file exists.
func CheckModel(path string) error {
	if path == "" {
		return ErrNoModel
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNoModel, path)
	}
	return nil
}

// Session is a mutex-guarded dynamic session; inputs and outputs are supplied per call.
type Session struct {
	s       *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
	mu      sync.Mutex
}

// NewSession loads the model at path with the given input and output names.
func NewSession(libPath, path string, inputs, outputs []string) (*Session, error) {
	if err := CheckModel(path); err != nil {
		return nil, err
	}
	if err := Init(libPath); err != nil {
		return nil, err
	}
	s, err := ort.NewDynamicAdvancedSession(path, inputs, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &Session{s: s, inputs: inputs, outputs: outputs}, nil
}

// Run executes the model. len(in) and len(out) must match the session's names.
func (s *Session) Run(in, out []ort.Value) error {
	if len(in) != len(s.inputs) || len(out) != len(s.outputs) {
		return fmt.Errorf("session expects %d inputs and %d outputs, got %d and %d",
			len(s.inputs), len(s.outputs), len(in), len(out))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.Run(in, out)
}

// Close releases the session.
func (s *Session) Close() error {
	if s == nil || s.s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.s.Destroy()
	s.s = nil
	return err
}

// Destroy releases a list of tensors, ignoring nils.
func Destroy(values ...ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy() //nolint:errcheck // best-effort cleanup
		}
	}
}
