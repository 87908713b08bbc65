package ops

import "github.com/born-ml/han/internal/tensor"

// ReshapeOp represents a reshape; the gradient is reshaped back.
type ReshapeOp struct{ base }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{newBase(output, x)}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(g, op.inputs[0].Shape())}
}

// TransposeOp represents a permutation of dimensions.
type TransposeOp struct {
	base
	axes []int
}

// NewTransposeOp creates a new TransposeOp. axes must be the full permutation.
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{base: newBase(output, x), axes: axes}
}

// Backward applies the inverse permutation.
func (op *TransposeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, a := range op.axes {
		inverse[a] = i
	}
	return []*tensor.RawTensor{backend.Transpose(g, inverse...)}
}

// CatOp represents concatenation along dim.
type CatOp struct {
	base
	dim int
}

// NewCatOp creates a new CatOp. dim must already be non-negative.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{base: newBase(output, inputs...), dim: dim}
}

// Backward splits the gradient back into per-input slices.
func (op *CatOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		n := in.Shape()[op.dim]
		grads[i] = backend.Narrow(g, op.dim, offset, n)
		offset += n
	}
	return grads
}

// NarrowOp represents a contiguous slice along dim.
type NarrowOp struct {
	base
	dim, start int
}

// NewNarrowOp creates a new NarrowOp. dim must already be non-negative.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start int) *NarrowOp {
	return &NarrowOp{base: newBase(output, x), dim: dim, start: start}
}

// Backward pads the gradient with zeros back to the input extent.
func (op *NarrowOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	in := op.inputs[0].Shape()
	length := g.Shape()[op.dim]
	after := in[op.dim] - op.start - length

	parts := make([]*tensor.RawTensor, 0, 3)
	if op.start > 0 {
		s := in.Clone()
		s[op.dim] = op.start
		parts = append(parts, zeros(s, g.DType(), backend))
	}
	parts = append(parts, g)
	if after > 0 {
		s := in.Clone()
		s[op.dim] = after
		parts = append(parts, zeros(s, g.DType(), backend))
	}
	if len(parts) == 1 {
		return []*tensor.RawTensor{g}
	}
	return []*tensor.RawTensor{backend.Cat(parts, op.dim)}
}
