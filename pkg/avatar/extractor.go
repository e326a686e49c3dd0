package avatar

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/codeGROOVE-dev/personamatch/pkg/onnxrt"
)

// ONNXExtractor runs a convolutional backbone (for example VGG16 features) and
// global-average-pools its final feature map.
type ONNXExtractor struct {
	session *onnxrt.Session
	shape   ort.Shape
}

// ONNXConfig locates the runtime and model. OutputShape defaults to 1x512x7x7.
type ONNXConfig struct {
	LibraryPath string
	ModelPath   string
	InputName   string
	OutputName  string
	OutputShape []int64
}

// NewONNXExtractor loads the model.
func NewONNXExtractor(cfg ONNXConfig) (*ONNXExtractor, error) {
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	if len(cfg.OutputShape) == 0 {
		cfg.OutputShape = []int64{1, 512, 7, 7}
	}
	if len(cfg.OutputShape) < 2 {
		return nil, fmt.Errorf("output shape %v has no channel dimension", cfg.OutputShape)
	}
	s, err := onnxrt.NewSession(cfg.LibraryPath, cfg.ModelPath, []string{cfg.InputName}, []string{cfg.OutputName})
	if err != nil {
		return nil, err
	}
	return &ONNXExtractor{session: s, shape: ort.NewShape(cfg.OutputShape...)}, nil
}

// Close releases the model.
func (e *ONNXExtractor) Close() error { return e.session.Close() }

// Features implements Extractor.
func (e *ONNXExtractor) Features(img image.Image) ([]float64, error) {
	in, err := ort.NewTensor(ort.NewShape(1, 3, CropSize, CropSize), Preprocess(img))
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	out, err := ort.NewEmptyTensor[float32](e.shape)
	if err != nil {
		onnxrt.Destroy(in)
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer onnxrt.Destroy(in, out)

	if err := e.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("run backbone: %w", err)
	}
	return GlobalAveragePool(out.GetData(), int(e.shape[1])), nil
}

// HashExtractor is a pure-Go extractor: the 64-bit difference hash expanded to
// a ±1 vector, so cosine similarity tracks 1 - 2·hamming/64.
type HashExtractor struct{}

// Features implements Extractor.
func (HashExtractor) Features(img image.Image) ([]float64, error) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("difference hash: %w", err)
	}
	return HashVector(hash.GetHash()), nil
}

// HashVector expands a 64-bit hash to ±1 components.
func HashVector(h uint64) []float64 {
	v := make([]float64, 64)
	for i := range v {
		if h&(1<<uint(i)) != 0 {
			v[i] = 1
		} else {
			v[i] = -1
		}
	}
	return v
}
