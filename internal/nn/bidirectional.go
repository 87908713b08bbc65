package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/han/internal/tensor"
)

// Bidirectional runs a forward and a backward GRU over the same input and
// concatenates their outputs on the feature axis.
//
// Example:
//
//	bi, err := nn.NewBidirectional[Backend](nn.GRUOptions{
//	    Name: "word_gru", In: 100, Units: 100, ReturnSequences: true,
//	}, rng, backend)
//	out := bi.Forward(x, mask) // [batch, steps, 200]
type Bidirectional[B tensor.Backend] struct {
	forward  *GRU[B]
	backward *GRU[B]
}

// NewBidirectional creates both directions from opts. opts.Name prefixes the
// "forward" and "backward" sub-layers; opts.GoBackwards is ignored.
func NewBidirectional[B tensor.Backend](opts GRUOptions, rng *rand.Rand, backend B) (*Bidirectional[B], error) {
	if opts.Name == "" {
		opts.Name = "bidirectional"
	}
	prefix := opts.Name

	fwdOpts := opts
	fwdOpts.Name = joinName(prefix, "forward")
	fwdOpts.GoBackwards = false
	fwd, err := NewGRU(fwdOpts, rng, backend)
	if err != nil {
		return nil, fmt.Errorf("bidirectional: %w", err)
	}

	bwdOpts := opts
	bwdOpts.Name = joinName(prefix, "backward")
	bwdOpts.GoBackwards = true
	bwd, err := NewGRU(bwdOpts, rng, backend)
	if err != nil {
		return nil, fmt.Errorf("bidirectional: %w", err)
	}

	return &Bidirectional[B]{forward: fwd, backward: bwd}, nil
}

// Forward returns concat(forward(x), backward(x)) along the last axis.
func (b *Bidirectional[B]) Forward(input, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	f := b.forward.Forward(input, mask)
	r := b.backward.Forward(input, mask)
	return tensor.Cat([]*tensor.Tensor[float32, B]{f, r}, len(f.Shape())-1)
}

// ComputeOutputShape doubles the units of the wrapped GRU.
func (b *Bidirectional[B]) ComputeOutputShape(inputShape tensor.Shape) tensor.Shape {
	out := b.forward.ComputeOutputShape(inputShape)
	out[len(out)-1] *= 2
	return out
}

// Parameters returns the forward parameters followed by the backward ones.
func (b *Bidirectional[B]) Parameters() []*Parameter[B] {
	return append(b.forward.Parameters(), b.backward.Parameters()...)
}
