package ops

import "github.com/born-ml/han/internal/tensor"

// SumOp represents output = sum(x) as a scalar.
type SumOp struct{ base }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{newBase(output, x)}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandTo(g, op.inputs[0].Shape(), backend)}
}

// SumDimOp represents output = sum(x, dim).
type SumDimOp struct {
	base
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp. dim must already be non-negative.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{base: newBase(output, x), dim: dim, keepDim: keepDim}
}

// Backward restores the reduced dimension and broadcasts along it.
func (op *SumDimOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()
	if !op.keepDim {
		kept := inShape.Clone()
		kept[op.dim] = 1
		g = backend.Reshape(g, kept)
	}
	return []*tensor.RawTensor{expandTo(g, inShape, backend)}
}
