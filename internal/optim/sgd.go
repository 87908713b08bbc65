package optim

import (
	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend    B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend:    backend,
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient and frozen parameters are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		g := grad.AsFloat32()
		data := param.Tensor().Data()
		if s.momentum == 0 {
			for i := range data {
				data[i] -= s.lr * g[i]
			}
			continue
		}

		vel := s.velocity(param).Data()
		for i := range data {
			vel[i] = s.momentum*vel[i] + g[i]
			data[i] -= s.lr * vel[i]
		}
	}
}

func (s *SGD[B]) velocity(param *nn.Parameter[B]) *tensor.Tensor[float32, B] {
	v, ok := s.velocities[param]
	if !ok {
		v = tensor.Zeros[float32](param.Tensor().Shape(), s.backend)
		s.velocities[param] = v
	}
	return v
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// Name returns "sgd".
func (s *SGD[B]) Name() string {
	return "sgd"
}

// StateDict returns the momentum buffers keyed "velocity.<param>".
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor, len(s.velocities))
	for _, p := range s.params {
		if v, ok := s.velocities[p]; ok {
			sd[slotName("velocity", p.Name())] = v.Raw()
		}
	}
	return sd
}

// LoadStateDict restores momentum buffers.
func (s *SGD[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	for _, p := range s.params {
		v := s.velocity(p)
		ok, err := loadSlot(v.Raw(), sd, slotName("velocity", p.Name()))
		if err != nil {
			return err
		}
		if !ok {
			delete(s.velocities, p)
		}
	}
	return nil
}
