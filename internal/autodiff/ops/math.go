package ops

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// ExpOp represents output = exp(x). d/dx = output.
type ExpOp struct{ base }

// NewExpOp creates a new ExpOp.
func NewExpOp(x, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{newBase(output, x)}
}

// Backward computes grad * exp(x).
func (op *ExpOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(g, op.output)}
}

// LogOp represents output = log(x). d/dx = 1/x.
type LogOp struct{ base }

// NewLogOp creates a new LogOp.
func NewLogOp(x, output *tensor.RawTensor) *LogOp {
	return &LogOp{newBase(output, x)}
}

// Backward computes grad / x.
func (op *LogOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(g, op.inputs[0])}
}

// TanhOp represents output = tanh(x). d/dx = 1 - tanh²(x).
type TanhOp struct{ base }

// NewTanhOp creates a new TanhOp.
func NewTanhOp(x, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{newBase(output, x)}
}

// Backward computes grad * (1 - output²).
func (op *TanhOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	sq := backend.Mul(op.output, op.output)
	return []*tensor.RawTensor{backend.Mul(g, oneMinus(sq, backend))}
}

// SigmoidOp represents output = σ(x). d/dx = σ(x)(1 - σ(x)).
type SigmoidOp struct{ base }

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{newBase(output, x)}
}

// Backward computes grad * output * (1 - output).
func (op *SigmoidOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	local := backend.Mul(op.output, oneMinus(op.output, backend))
	return []*tensor.RawTensor{backend.Mul(g, local)}
}

// ClampOp represents output = min(max(x, lo), hi).
// The gradient passes where lo <= x <= hi and is zero elsewhere.
type ClampOp struct {
	base
	lo, hi float64
}

// NewClampOp creates a new ClampOp.
func NewClampOp(x, output *tensor.RawTensor, lo, hi float64) *ClampOp {
	return &ClampOp{base: newBase(output, x), lo: lo, hi: hi}
}

// Backward masks the gradient to the unclipped region.
func (op *ClampOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	mask := zeros(x.Shape(), x.DType(), backend)
	switch x.DType() {
	case tensor.Float32:
		m := mask.AsFloat32()
		for i, v := range x.AsFloat32() {
			if float64(v) >= op.lo && float64(v) <= op.hi {
				m[i] = 1
			}
		}
	case tensor.Float64:
		m := mask.AsFloat64()
		for i, v := range x.AsFloat64() {
			if v >= op.lo && v <= op.hi {
				m[i] = 1
			}
		}
	default:
		panic(fmt.Sprintf("clamp backward: unsupported dtype %s", x.DType()))
	}
	return []*tensor.RawTensor{backend.Mul(g, mask)}
}
