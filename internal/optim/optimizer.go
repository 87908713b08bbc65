// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers update parameter values in place from a gradient map produced
// by autodiff.Backward. Frozen parameters and parameters without a gradient
// are left unchanged.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
//
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(input), targets)
//	grads := autodiff.Backward(loss, backend)
//	backend.Tape().StopRecording()
//
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package optim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/tensor"
)

// ErrUnknownOptimizer is returned by New for an unsupported name.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	nn.OptimizerState

	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// SetLR changes the learning rate.
	SetLR(lr float32)
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// New creates an optimizer by name ("adam" or "sgd") with default
// hyperparameters and the given learning rate.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], lr float32, backend B) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "", "adam":
		return NewAdam(params, AdamConfig{LR: lr}, backend), nil
	case "sgd":
		return NewSGD(params, SGDConfig{LR: lr}, backend), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, name)
	}
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation
// graph) or the parameter is frozen.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil || !param.Trainable() {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

// slotName keys per-parameter optimizer state in a state dict.
func slotName(slot, param string) string {
	return slot + "." + param
}

// loadSlot copies a saved slot into dst. A missing slot is not an error:
// the parameter has not been stepped yet.
func loadSlot(dst *tensor.RawTensor, sd map[string]*tensor.RawTensor, key string) (bool, error) {
	raw, ok := sd[key]
	if !ok {
		return false, nil
	}
	if !raw.Shape().Equal(dst.Shape()) || raw.DType() != dst.DType() {
		return false, fmt.Errorf("%w: %s: have %v, got %v", nn.ErrParameterShape, key, dst.Shape(), raw.Shape())
	}
	copy(dst.Data(), raw.Data())
	return true, nil
}
