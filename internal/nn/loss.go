package nn

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// BinaryCrossEntropy is the loss for a single sigmoid output.
//
// Computes:
//
//	BCE = -mean(y*log(p) + (1-y)*log(1-p))
//
// with p clipped to [ε, 1-ε] so saturated predictions stay finite.
//
// Example:
//
//	criterion := nn.NewBinaryCrossEntropy[Backend]()
//	loss := criterion.Forward(probs, labels) // scalar
type BinaryCrossEntropy[B tensor.Backend] struct {
	Epsilon float32
}

// NewBinaryCrossEntropy creates a BCE loss with ε = 1e-7.
func NewBinaryCrossEntropy[B tensor.Backend]() *BinaryCrossEntropy[B] {
	return &BinaryCrossEntropy[B]{Epsilon: DefaultEpsilon}
}

// Forward returns the mean loss as a scalar tensor.
// predictions and targets must have the same shape.
func (l *BinaryCrossEntropy[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("bce: predictions %v and targets %v differ in shape",
			predictions.Shape(), targets.Shape()))
	}
	eps := float64(l.Epsilon)
	p := predictions.Clamp(eps, 1-eps)

	pos := targets.Mul(p.Log())
	neg := oneMinus(targets).Mul(oneMinus(p).Log())

	n := float32(predictions.NumElements())
	return pos.Add(neg).Sum().MulScalar(-1 / n)
}

// Parameters returns nil (loss functions have no parameters).
func (l *BinaryCrossEntropy[B]) Parameters() []*Parameter[B] {
	return nil
}

// BinaryAccuracy returns the fraction of predictions on the right side of
// 0.5. A prediction of exactly 0.5 counts as negative.
func BinaryAccuracy[B tensor.Backend](predictions, targets *tensor.Tensor[float32, B]) float64 {
	p, y := predictions.Data(), targets.Data()
	if len(p) != len(y) {
		panic(fmt.Sprintf("accuracy: %d predictions for %d targets", len(p), len(y)))
	}
	if len(p) == 0 {
		return 0
	}
	correct := 0
	for i := range p {
		if (p[i] > 0.5) == (y[i] > 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(p))
}

func oneMinus[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.MulScalar(-1).AddScalar(1)
}
