package ops

import "github.com/born-ml/han/internal/tensor"

// AddOp represents output = a + b.
type AddOp struct{ base }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{newBase(output, a, b)}
}

// Backward passes the gradient through to both inputs.
func (op *AddOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(g, op.inputs[0].Shape(), backend),
		reduceBroadcast(g, op.inputs[1].Shape(), backend),
	}
}

// SubOp represents output = a - b.
type SubOp struct{ base }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{newBase(output, a, b)}
}

// Backward computes [grad, -grad].
func (op *SubOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(g, op.inputs[0].Shape(), backend),
		reduceBroadcast(backend.MulScalar(g, -1.0), op.inputs[1].Shape(), backend),
	}
}

// MulOp represents output = a * b.
type MulOp struct{ base }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{newBase(output, a, b)}
}

// Backward computes [grad*b, grad*a].
func (op *MulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(g, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(g, a), b.Shape(), backend),
	}
}

// DivOp represents output = a / b.
type DivOp struct{ base }

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{newBase(output, a, b)}
}

// Backward computes [grad/b, -grad*output/b].
func (op *DivOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.Div(g, b)
	gradB := backend.MulScalar(backend.Div(backend.Mul(g, op.output), b), -1.0)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}

// MatMulOp represents a matrix multiplication operation: output = a @ b.
//
// Backward pass:
//   - d(A@B)/dA = outputGrad @ B^T
//   - d(A@B)/dB = A^T @ outputGrad
type MatMulOp struct{ base }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{newBase(output, a, b)}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.MatMul(g, backend.Transpose(b, 1, 0))
	gradB := backend.MatMul(backend.Transpose(a, 1, 0), g)
	return []*tensor.RawTensor{gradA, gradB}
}

// MulScalarOp represents output = x * s.
type MulScalarOp struct {
	base
	scalar any
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar any) *MulScalarOp {
	return &MulScalarOp{base: newBase(output, x), scalar: scalar}
}

// Backward computes grad * s.
func (op *MulScalarOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(g, op.scalar)}
}

// AddScalarOp represents output = x + s.
type AddScalarOp struct{ base }

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{newBase(output, x)}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{g}
}
