package cpu

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// Sum reduces all elements to a scalar tensor (shape []).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var s float64
		for _, v := range x.AsFloat32() {
			s += float64(v)
		}
		result.AsFloat32()[0] = float32(s)
	case tensor.Float64:
		var s float64
		for _, v := range x.AsFloat64() {
			s += v
		}
		result.AsFloat64()[0] = s
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}
	return result
}

// SumDim sums along dim. With keepDim the reduced dimension stays as size 1.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))

	outer, size, inner := splitAt(shape, dim)

	outShape := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumAxis(result.AsFloat32(), x.AsFloat32(), outer, size, inner)
	case tensor.Float64:
		sumAxis(result.AsFloat64(), x.AsFloat64(), outer, size, inner)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s", x.DType()))
	}
	return result
}

func sumAxis[T float](out, x []T, outer, size, inner int) {
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var s T
			base := o*size*inner + i
			for d := 0; d < size; d++ {
				s += x[base+d*inner]
			}
			out[o*inner+i] = s
		}
	}
}

// splitAt returns the products of dims before dim, dim itself, and after dim.
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}
