package embed

import (
	"context"
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/codeGROOVE-dev/personamatch/pkg/onnxrt"
)

// ONNX is a local sentence encoder: a transformer exported to ONNX plus its
// HuggingFace tokenizer.json. Token states are mean-pooled over the attention mask.
type ONNX struct {
	session   *onnxrt.Session
	tk        *tokenizer.Tokenizer
	maxSeqLen int
	hidden    int
}

// ONNXConfig locates the runtime library, model and tokenizer.
type ONNXConfig struct {
	LibraryPath   string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	HiddenSize    int
}

// NewONNX loads the model and tokenizer.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 256
	}
	if cfg.HiddenSize <= 0 {
		cfg.HiddenSize = 384
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", cfg.TokenizerPath, err)
	}
	session, err := onnxrt.NewSession(cfg.LibraryPath, cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"})
	if err != nil {
		return nil, err
	}
	return &ONNX{session: session, tk: tk, maxSeqLen: cfg.MaxSeqLen, hidden: cfg.HiddenSize}, nil
}

// Close releases the model.
func (o *ONNX) Close() error { return o.session.Close() }

// Embed implements Embedder.
func (o *ONNX) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enc, err := o.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ids, mask, types := truncate(enc.Ids, o.maxSeqLen), truncate(enc.AttentionMask, o.maxSeqLen), truncate(enc.TypeIds, o.maxSeqLen)
	if len(ids) == 0 {
		return nil, ErrEmptyEmbedding
	}
	n := int64(len(ids))
	shape := ort.NewShape(1, n)

	idT, err := ort.NewTensor(shape, toInt64(ids))
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	maskT, err := ort.NewTensor(shape, toInt64(mask))
	if err != nil {
		onnxrt.Destroy(idT)
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	typeT, err := ort.NewTensor(shape, toInt64(padTo(types, len(ids))))
	if err != nil {
		onnxrt.Destroy(idT, maskT)
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, int64(o.hidden)))
	if err != nil {
		onnxrt.Destroy(idT, maskT, typeT)
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer onnxrt.Destroy(idT, maskT, typeT, out)

	if err := o.session.Run([]ort.Value{idT, maskT, typeT}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("run encoder: %w", err)
	}
	return MeanPool(out.GetData(), mask, o.hidden), nil
}

// MeanPool averages token states (row-major, one row of width hidden per token)
// over positions whose mask value is non-zero.
func MeanPool(states []float32, mask []int, hidden int) []float64 {
	out := make([]float64, hidden)
	var count float64
	for t, m := range mask {
		if m == 0 || (t+1)*hidden > len(states) {
			continue
		}
		row := states[t*hidden : (t+1)*hidden]
		for i, v := range row {
			out[i] += float64(v)
		}
		count++
	}
	if count == 0 {
		return out
	}
	for i := range out {
		out[i] /= count
	}
	return out
}

func truncate(v []int, n int) []int {
	if len(v) > n {
		return v[:n]
	}
	return v
}

func padTo(v []int, n int) []int {
	if len(v) >= n {
		return v[:n]
	}
	return append(v, make([]int, n-len(v))...)
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}
