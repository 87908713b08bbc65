package ops

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// EmbeddingOp represents output = weight[indices].
//
// The weight gradient scatter-adds each output row's gradient into the row
// it was gathered from. Indices receive no gradient.
type EmbeddingOp struct{ base }

// NewEmbeddingOp creates a new EmbeddingOp.
func NewEmbeddingOp(weight, indices, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{newBase(output, weight, indices)}
}

// Backward computes the weight gradient.
func (op *EmbeddingOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	weight, indices := op.inputs[0], op.inputs[1]
	dim := weight.Shape()[1]
	grad := zeros(weight.Shape(), weight.DType(), backend)

	switch weight.DType() {
	case tensor.Float32:
		scatterAdd(grad.AsFloat32(), g.AsFloat32(), indices.AsInt32(), dim)
	case tensor.Float64:
		scatterAdd(grad.AsFloat64(), g.AsFloat64(), indices.AsInt32(), dim)
	default:
		panic(fmt.Sprintf("embedding backward: unsupported dtype %s", weight.DType()))
	}
	return []*tensor.RawTensor{grad, nil}
}

func scatterAdd[T ~float32 | ~float64](dst, src []T, indices []int32, dim int) {
	for i, idx := range indices {
		row := dst[int(idx)*dim : (int(idx)+1)*dim]
		for j, v := range src[i*dim : (i+1)*dim] {
			row[j] += v
		}
	}
}
