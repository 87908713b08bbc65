// Package ops defines the differentiable operations recorded by the autodiff
// backend.
//
// Each operation keeps its inputs and output from the forward pass and
// computes input gradients from the output gradient in Backward:
//   - AddOp, SubOp, MulOp, DivOp: broadcasting element-wise arithmetic
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - ExpOp, LogOp, TanhOp, SigmoidOp, ClampOp: element-wise math
//   - SumOp, SumDimOp: reductions
//   - ReshapeOp, TransposeOp, CatOp, NarrowOp: layout
//   - EmbeddingOp: row gather with scatter-add gradient
package ops

import "github.com/born-ml/han/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns one gradient per input; nil marks an input that receives none.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// base holds the bookkeeping shared by every operation.
type base struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the input tensors.
func (b *base) Inputs() []*tensor.RawTensor {
	return b.inputs
}

// Output returns the output tensor.
func (b *base) Output() *tensor.RawTensor {
	return b.output
}

func newBase(output *tensor.RawTensor, inputs ...*tensor.RawTensor) base {
	return base{inputs: inputs, output: output}
}
