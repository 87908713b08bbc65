package nn

import "math"

// Regularizer computes a weight penalty added to the training loss.
type Regularizer interface {
	// Penalty returns the penalty value for weights w.
	Penalty(w []float32) float64
	// AddGradient adds d(penalty)/dw to grad.
	AddGradient(w, grad []float32)
}

// L1L2Regularizer penalizes l1*sum(|w|) + l2*sum(w²).
type L1L2Regularizer struct {
	L1 float32
	L2 float32
}

// L1 returns a lasso regularizer.
func L1(l float32) *L1L2Regularizer { return &L1L2Regularizer{L1: l} }

// L2 returns a ridge regularizer.
func L2(l float32) *L1L2Regularizer { return &L1L2Regularizer{L2: l} }

// L1L2 returns an elastic-net regularizer.
func L1L2(l1, l2 float32) *L1L2Regularizer { return &L1L2Regularizer{L1: l1, L2: l2} }

// Penalty implements Regularizer.
func (r *L1L2Regularizer) Penalty(w []float32) float64 {
	var abs, sq float64
	for _, v := range w {
		abs += math.Abs(float64(v))
		sq += float64(v) * float64(v)
	}
	return float64(r.L1)*abs + float64(r.L2)*sq
}

// AddGradient implements Regularizer. The L1 subgradient at 0 is 0.
func (r *L1L2Regularizer) AddGradient(w, grad []float32) {
	for i, v := range w {
		var sign float32
		switch {
		case v > 0:
			sign = 1
		case v < 0:
			sign = -1
		}
		grad[i] += r.L1*sign + 2*r.L2*v
	}
}
