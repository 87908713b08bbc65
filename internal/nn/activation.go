package nn

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
//
// Example:
//
//	sigmoid := nn.NewSigmoid[Backend]()
//	output := sigmoid.Forward(input)  // Values in range (0, 1)
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies σ(x).
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return sigmoid(input)
}

// Parameters returns nil (Sigmoid has no parameters).
func (s *Sigmoid[B]) Parameters() []*Parameter[B] {
	return nil
}

// Tanh is a hyperbolic tangent activation module.
type Tanh[B tensor.Backend] struct{}

// NewTanh creates a new Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies tanh(x).
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tanh(input)
}

// Parameters returns nil (Tanh has no parameters).
func (t *Tanh[B]) Parameters() []*Parameter[B] {
	return nil
}

func sigmoid[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	sb, ok := any(backend).(tensor.SigmoidBackend)
	if !ok {
		panic(fmt.Sprintf("sigmoid: backend %s must implement Sigmoid", backend.Name()))
	}
	return tensor.New[float32, B](sb.Sigmoid(x.Raw()), backend)
}

func tanh[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := x.Backend()
	tb, ok := any(backend).(tensor.TanhBackend)
	if !ok {
		panic(fmt.Sprintf("tanh: backend %s must implement Tanh", backend.Name()))
	}
	return tensor.New[float32, B](tb.Tanh(x.Raw()), backend)
}

// hardSigmoid is clip(0.2x + 0.5, 0, 1).
func hardSigmoid[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.MulScalar(0.2).AddScalar(0.5).Clamp(0, 1)
}

// Activation names accepted by recurrent layers.
const (
	ActivationSigmoid     = "sigmoid"
	ActivationHardSigmoid = "hard_sigmoid"
)

func gateActivation[B tensor.Backend](name string) (func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B], error) {
	switch name {
	case "", ActivationSigmoid:
		return sigmoid[B], nil
	case ActivationHardSigmoid:
		return hardSigmoid[B], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
}
