package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// Parameter errors.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrParameterShape   = errors.New("parameter shape mismatch")
)

// Parameter represents a weight of a neural network.
//
// Besides its value, a parameter carries the training hooks Keras attaches
// to a weight: whether the optimizer may change it, an optional regularizer
// whose penalty joins the loss, and an optional constraint projected after
// every optimizer step.
//
// Example:
//
//	w := nn.NewParameter("attention.W", weightTensor)
//	w.Regularizer = nn.L2(1e-4)
//	w.Constraint = nn.MaxNorm(3)
type Parameter[B tensor.Backend] struct {
	name      string
	tensor    *tensor.Tensor[float32, B]
	trainable bool

	// Regularizer adds a penalty on the value to the training loss. Optional.
	Regularizer Regularizer
	// Constraint is applied to the value after each optimizer step. Optional.
	Constraint Constraint
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:      name,
		tensor:    t,
		trainable: true,
	}
}

// NewFrozenParameter creates a parameter the optimizer never updates,
// like a pretrained embedding table.
func NewFrozenParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	p := NewParameter(name, t)
	p.trainable = false
	return p
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Trainable reports whether optimizers update this parameter.
func (p *Parameter[B]) Trainable() bool {
	return p.trainable
}

// SetTrainable freezes or unfreezes the parameter.
func (p *Parameter[B]) SetTrainable(trainable bool) {
	p.trainable = trainable
}

// Load copies raw into the parameter value in place.
func (p *Parameter[B]) Load(raw *tensor.RawTensor) error {
	if !raw.Shape().Equal(p.tensor.Shape()) || raw.DType() != p.tensor.DType() {
		return fmt.Errorf("%w: %s: have %s%v, got %s%v", ErrParameterShape, p.name,
			p.tensor.DType(), p.tensor.Shape(), raw.DType(), raw.Shape())
	}
	copy(p.tensor.Raw().Data(), raw.Data())
	return nil
}

// Penalty returns the regularization penalty of the current value (0 without
// a regularizer).
func (p *Parameter[B]) Penalty() float64 {
	if p.Regularizer == nil {
		return 0
	}
	return p.Regularizer.Penalty(p.tensor.Data())
}

// ApplyConstraint projects the value in place when a constraint is set.
func (p *Parameter[B]) ApplyConstraint() {
	if p.Constraint != nil {
		p.Constraint.Apply(p.tensor.Data(), p.tensor.Shape())
	}
}
