package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations and must not
// mutate their inputs.
//
// Implementations:
//   - cpu.CPUBackend: pure Go kernels
//   - autodiff.AutodiffBackend: decorator that records operations for
//     reverse-mode differentiation
type Backend interface {
	// Element-wise binary operations (NumPy broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies two 2D tensors: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Clamp(x *RawTensor, lo, hi float64) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Manipulation operations
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor

	// Embedding looks up rows of weight (V, D) for int32 indices of any
	// shape S and returns shape S + (D).
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}

// TanhBackend is implemented by backends that support the tanh activation.
type TanhBackend interface {
	Tanh(x *RawTensor) *RawTensor
}

// SigmoidBackend is implemented by backends that support the logistic sigmoid.
type SigmoidBackend interface {
	Sigmoid(x *RawTensor) *RawTensor
}
