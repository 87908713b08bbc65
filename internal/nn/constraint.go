package nn

import (
	"math"

	"github.com/born-ml/han/internal/tensor"
)

// constraintEpsilon guards norm divisions, matching the framework float epsilon.
const constraintEpsilon = 1e-7

// Constraint projects a weight in place after an optimizer step.
type Constraint interface {
	Apply(w []float32, shape tensor.Shape)
}

// NonNegConstraint zeroes negative weights.
type NonNegConstraint struct{}

// NonNeg returns a non-negativity constraint.
func NonNeg() NonNegConstraint { return NonNegConstraint{} }

// Apply implements Constraint.
func (NonNegConstraint) Apply(w []float32, _ tensor.Shape) {
	for i, v := range w {
		if v < 0 {
			w[i] = 0
		}
	}
}

// NormConstraint rescales slices along axis 0 so their L2 norms follow
// desired(norm). For a (in, out) kernel each output unit's incoming weight
// vector is one slice; for a vector the whole vector is.
type NormConstraint struct {
	desired func(norm float64) float64
}

// Apply implements Constraint.
func (c NormConstraint) Apply(w []float32, shape tensor.Shape) {
	rows := 1
	if len(shape) > 0 {
		rows = shape[0]
	}
	cols := len(w) / rows

	for c0 := 0; c0 < cols; c0++ {
		var sq float64
		for r := 0; r < rows; r++ {
			v := float64(w[r*cols+c0])
			sq += v * v
		}
		norm := math.Sqrt(sq)
		scale := c.desired(norm) / (constraintEpsilon + norm)
		for r := 0; r < rows; r++ {
			w[r*cols+c0] = float32(float64(w[r*cols+c0]) * scale)
		}
	}
}

// MaxNorm caps each slice norm at maxValue.
func MaxNorm(maxValue float64) NormConstraint {
	return NormConstraint{desired: func(n float64) float64 { return math.Min(n, maxValue) }}
}

// UnitNorm rescales each slice to norm 1.
func UnitNorm() NormConstraint {
	return NormConstraint{desired: func(float64) float64 { return 1 }}
}

// MinMaxNorm moves each slice norm into [minValue, maxValue] at the given rate
// (1 enforces strictly).
func MinMaxNorm(minValue, maxValue, rate float64) NormConstraint {
	return NormConstraint{desired: func(n float64) float64 {
		clipped := math.Min(math.Max(n, minValue), maxValue)
		return rate*clipped + (1-rate)*n
	}}
}
