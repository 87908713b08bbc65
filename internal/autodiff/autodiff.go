// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient tracking
// through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op implements its backward pass
//   - Reverse-mode AD: Computes gradients using the chain rule
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x, _ := tensor.FromSlice([]float32{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x) // y = x²
//	grads := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()].AsFloat32()) // dy/dx = 2x = [4]
package autodiff

import (
	"fmt"

	"github.com/born-ml/han/internal/autodiff/ops"
	"github.com/born-ml/han/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements tensor.Backend, tensor.TanhBackend and tensor.SigmoidBackend
// and records operations in a GradientTape while recording is enabled.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Add(x, y)
	b.record(func() ops.Operation { return ops.NewAddOp(x, y, out) })
	return out
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sub(x, y)
	b.record(func() ops.Operation { return ops.NewSubOp(x, y, out) })
	return out
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Mul(x, y)
	b.record(func() ops.Operation { return ops.NewMulOp(x, y, out) })
	return out
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Div(x, y)
	b.record(func() ops.Operation { return ops.NewDivOp(x, y, out) })
	return out
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.MatMul(x, y)
	b.record(func() ops.Operation { return ops.NewMatMulOp(x, y, out) })
	return out
}

// Reshape changes the shape and records the operation.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	out := b.inner.Reshape(x, newShape)
	b.record(func() ops.Operation { return ops.NewReshapeOp(x, out) })
	return out
}

// Transpose permutes dimensions and records the operation.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	out := b.inner.Transpose(x, axes...)
	b.record(func() ops.Operation { return ops.NewTransposeOp(x, out, fullPermutation(len(x.Shape()), axes)) })
	return out
}

// MulScalar multiplies by a scalar and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	out := b.inner.MulScalar(x, scalar)
	b.record(func() ops.Operation { return ops.NewMulScalarOp(x, out, scalar) })
	return out
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	out := b.inner.AddScalar(x, scalar)
	b.record(func() ops.Operation { return ops.NewAddScalarOp(x, out) })
	return out
}

// Exp computes e^x and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Exp(x)
	b.record(func() ops.Operation { return ops.NewExpOp(x, out) })
	return out
}

// Log computes ln(x) and records the operation.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Log(x)
	b.record(func() ops.Operation { return ops.NewLogOp(x, out) })
	return out
}

// Clamp limits values to [lo, hi] and records the operation.
func (b *AutodiffBackend[B]) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	out := b.inner.Clamp(x, lo, hi)
	b.record(func() ops.Operation { return ops.NewClampOp(x, out, lo, hi) })
	return out
}

// Tanh computes tanh(x) and records the operation.
// Panics if the wrapped backend does not implement tensor.TanhBackend.
func (b *AutodiffBackend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	inner, ok := any(b.inner).(tensor.TanhBackend)
	if !ok {
		panic(fmt.Sprintf("tanh: backend %s does not support tanh", b.inner.Name()))
	}
	out := inner.Tanh(x)
	b.record(func() ops.Operation { return ops.NewTanhOp(x, out) })
	return out
}

// Sigmoid computes σ(x) and records the operation.
// Panics if the wrapped backend does not implement tensor.SigmoidBackend.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	inner, ok := any(b.inner).(tensor.SigmoidBackend)
	if !ok {
		panic(fmt.Sprintf("sigmoid: backend %s does not support sigmoid", b.inner.Name()))
	}
	out := inner.Sigmoid(x)
	b.record(func() ops.Operation { return ops.NewSigmoidOp(x, out) })
	return out
}

// Sum reduces all elements and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sum(x)
	b.record(func() ops.Operation { return ops.NewSumOp(x, out) })
	return out
}

// SumDim sums along dim and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	out := b.inner.SumDim(x, dim, keepDim)
	d := tensor.NormalizeDim(dim, len(x.Shape()))
	b.record(func() ops.Operation { return ops.NewSumDimOp(x, out, d, keepDim) })
	return out
}

// Cat concatenates along dim and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	out := b.inner.Cat(tensors, dim)
	d := tensor.NormalizeDim(dim, len(out.Shape()))
	inputs := append([]*tensor.RawTensor(nil), tensors...)
	b.record(func() ops.Operation { return ops.NewCatOp(inputs, out, d) })
	return out
}

// Narrow slices along dim and records the operation.
func (b *AutodiffBackend[B]) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	out := b.inner.Narrow(x, dim, start, length)
	d := tensor.NormalizeDim(dim, len(x.Shape()))
	b.record(func() ops.Operation { return ops.NewNarrowOp(x, out, d, start) })
	return out
}

// Embedding looks up rows and records the operation.
func (b *AutodiffBackend[B]) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Embedding(weight, indices)
	b.record(func() ops.Operation { return ops.NewEmbeddingOp(weight, indices, out) })
	return out
}

// record builds and stores an operation only while the tape is recording.
func (b *AutodiffBackend[B]) record(build func() ops.Operation) {
	if b.tape.IsRecording() {
		b.tape.Record(build())
	}
}

func fullPermutation(rank int, axes []int) []int {
	if len(axes) > 0 {
		return append([]int(nil), axes...)
	}
	perm := make([]int, rank)
	for i := range perm {
		perm[i] = i
	}
	perm[rank-1], perm[rank-2] = perm[rank-2], perm[rank-1]
	return perm
}
