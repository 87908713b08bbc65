// Package nn implements the neural network layers of the hierarchical
// attention classifier.
//
// This package provides:
//   - Module interface and Parameter with regularizer/constraint hooks
//   - Initializers: Glorot uniform, orthogonal, uniform, zeros
//   - Layers: Dense, Embedding, GRU, Bidirectional, Attention, Sigmoid
//   - Loss and metric: BinaryCrossEntropy, BinaryAccuracy
//   - Sequential container and training checkpoints
//
// Layers compute through the tensor.Backend they were created with; wrap the
// CPU backend in autodiff.AutodiffBackend to train.
package nn

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Parameters returns every parameter the module owns, nested modules
// included, with unique hierarchical names.
type Module[B tensor.Backend] interface {
	Parameters() []*Parameter[B]
}

// Layer is a Module with a single-input forward pass.
//
// Modules can be composed to build the classifier head:
//
//	head := nn.NewSequential[Backend](
//	    nn.NewDense[Backend](nn.DenseOptions{In: 200, Out: 1}, rng, backend),
//	    nn.NewSigmoid[Backend](),
//	)
type Layer[B tensor.Backend] interface {
	Module[B]
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// MaskedLayer is a Module whose forward pass accepts an optional validity
// mask of shape (batch, steps) with 1 for valid and 0 for padded steps.
type MaskedLayer[B tensor.Backend] interface {
	Module[B]
	Forward(input, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// StateDict returns a map of parameter names to raw tensors for m.
func StateDict[B tensor.Backend](m Module[B]) map[string]*tensor.RawTensor {
	params := m.Parameters()
	sd := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		sd[p.Name()] = p.Tensor().Raw()
	}
	return sd
}

// LoadStateDict copies values from stateDict into m's parameters.
// Every parameter must be present with a matching shape and dtype.
func LoadStateDict[B tensor.Backend](m Module[B], stateDict map[string]*tensor.RawTensor) error {
	for _, p := range m.Parameters() {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingParameter, p.Name())
		}
		if err := p.Load(raw); err != nil {
			return err
		}
	}
	return nil
}

// CountParameters returns the total and trainable element counts of m.
func CountParameters[B tensor.Backend](m Module[B]) (total, trainable int) {
	for _, p := range m.Parameters() {
		n := p.Tensor().NumElements()
		total += n
		if p.Trainable() {
			trainable += n
		}
	}
	return total, trainable
}
