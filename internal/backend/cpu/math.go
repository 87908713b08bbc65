package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/han/internal/tensor"
)

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, math.Exp)
}

// Log computes the natural logarithm element-wise.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, math.Log)
}

// Tanh computes the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("tanh", x, math.Tanh)
}

// Sigmoid computes 1 / (1 + e^-x) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, sigmoid)
}

// Clamp limits every element to [lo, hi].
func (cpu *CPUBackend) Clamp(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	return cpu.unary("clamp", x, func(v float64) float64 {
		return math.Min(math.Max(v, lo), hi)
	})
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("mul_scalar", scalar)
	return cpu.unary("mul_scalar", x, func(v float64) float64 { return v * s })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat64("add_scalar", scalar)
	return cpu.unary("add_scalar", x, func(v float64) float64 { return v + s })
}

func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}

	switch x.DType() {
	case tensor.Float32:
		applyUnary(result.AsFloat32(), x.AsFloat32(), f)
	case tensor.Float64:
		applyUnary(result.AsFloat64(), x.AsFloat64(), f)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}
	return result
}

func applyUnary[T float](out, x []T, f func(float64) float64) {
	for i, v := range x {
		out[i] = T(f(float64(v)))
	}
}

// sigmoid is split on the sign of v so exp never overflows.
func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

func toFloat64(op string, scalar any) float64 {
	switch s := scalar.(type) {
	case float32:
		return float64(s)
	case float64:
		return s
	case int:
		return float64(s)
	case int32:
		return float64(s)
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T", op, scalar))
	}
}
