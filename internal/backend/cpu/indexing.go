package cpu

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// Embedding gathers rows of weight [V, D] for each int32 index.
// indices of shape S produce a result of shape S + [D].
// Panics if an index is outside [0, V).
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [vocab, dim], got %v", wShape))
	}
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}

	vocab, dim := wShape[0], wShape[1]
	outShape := append(indices.Shape().Clone(), dim)

	result, err := tensor.NewRaw(outShape, weight.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("embedding: %v", err))
	}

	row := dim * weight.DType().Size()
	src := weight.Data()
	dst := result.Data()
	for i, idx := range indices.AsInt32() {
		if idx < 0 || int(idx) >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, vocab))
		}
		copy(dst[i*row:(i+1)*row], src[int(idx)*row:(int(idx)+1)*row])
	}
	return result
}
