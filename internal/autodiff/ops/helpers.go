package ops

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// Leading dimensions that broadcasting added.
	result := grad
	for i := 0; i < len(gradShape)-len(targetShape); i++ {
		result = backend.SumDim(result, 0, false)
	}

	for i, d := range targetShape {
		if d == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// expandTo broadcasts grad up to shape.
func expandTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	return backend.Add(zeros(shape, grad.DType(), backend), grad)
}

func zeros(shape tensor.Shape, dtype tensor.DataType, backend tensor.Backend) *tensor.RawTensor {
	z, err := tensor.NewRaw(shape, dtype, backend.Device())
	if err != nil {
		panic(fmt.Sprintf("autodiff: failed to allocate gradient: %v", err))
	}
	return z
}

// oneMinus returns 1 - x.
func oneMinus(x *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.AddScalar(backend.MulScalar(x, -1.0), 1.0)
}
