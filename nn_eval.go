package main

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Scorer is the capability a learned evaluator provides: score a fixed-width
// feature vector from the mover's perspective, output in [-1, 1]. The search
// and the heuristic evaluator stay agnostic to what backs it.
type Scorer interface {
	Score(features []float32) (float32, error)
	Close() error
}

const (
	onnxInputName  = "features"
	onnxOutputName = "value"
)

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

func ensureOnnxEnvironment() error {
	ortEnvOnce.Do(func() {
		if path := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortEnvErr = fmt.Errorf("onnxruntime init: %w", err)
		}
	})
	return ortEnvErr
}

// OnnxScorer evaluates positions with an ONNX value model. The session binds
// fixed input/output tensors, so Run calls are serialized behind a mutex and
// the buffers are reused.
type OnnxScorer struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewOnnxScorer(modelPath string) (*OnnxScorer, error) {
	if err := ensureOnnxEnvironment(); err != nil {
		return nil, err
	}
	input, err := ort.NewTensor(ort.NewShape(1, FeatureCount), make([]float32, FeatureCount))
	if err != nil {
		return nil, fmt.Errorf("onnx input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("onnx output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(modelPath,
		[]string{onnxInputName}, []string{onnxOutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("onnx session %s: %w", modelPath, err)
	}
	return &OnnxScorer{session: session, input: input, output: output}, nil
}

func (s *OnnxScorer) Score(features []float32) (float32, error) {
	if len(features) != FeatureCount {
		return 0, fmt.Errorf("feature vector width %d, want %d", len(features), FeatureCount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.input.GetData(), features)
	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}
	value := s.output.GetData()[0]
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	return value, nil
}

func (s *OnnxScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	return nil
}
