package autodiff

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// BackwardCapable is a backend that records onto a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the backend's tape.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward differentiates t against everything recorded on backend's tape.
// The seed gradient is all ones, so a non-scalar t is treated as the sum of
// its elements. The result is keyed by raw tensor; tensors that did not
// contribute to t are absent.
//
//	tape := backend.Tape()
//	tape.StartRecording()
//	loss := model.Forward(x).Sum()
//	grads := autodiff.Backward(loss, backend)
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: tape is empty; was recording started before the forward pass?")
	}

	seed := tensor.MustNewRaw(t.Shape(), t.DType(), backend.Device())
	switch t.DType() {
	case tensor.Float32:
		fillOnes(seed.AsFloat32())
	case tensor.Float64:
		fillOnes(seed.AsFloat64())
	default:
		panic(fmt.Sprintf("backward: cannot differentiate %s", t.DType()))
	}
	return tape.Backward(t.Raw(), seed, backend)
}

func fillOnes[F float32 | float64](xs []F) {
	for i := range xs {
		xs[i] = 1
	}
}
