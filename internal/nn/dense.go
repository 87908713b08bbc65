package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/han/internal/tensor"
)

// DenseOptions configures a Dense layer.
type DenseOptions struct {
	Name    string // parameter name prefix, default "dense"
	In      int
	Out     int
	NoBias  bool
	Kernel  Initializer // default GlorotUniform
	BiasIni Initializer // default Zeros
}

// Dense implements a fully connected layer applied to the last axis.
//
// Performs y = x @ W + b where W has shape [in, out] and b has shape [out].
// Inputs of rank > 2 are flattened to [-1, in] and the leading dimensions
// restored afterwards, which is what a time-distributed dense projection
// does over (batch, steps, in).
//
// Example:
//
//	layer := nn.NewDense[Backend](nn.DenseOptions{In: 200, Out: 200}, rng, backend)
//	output := layer.Forward(input) // [batch, steps, 200] -> [batch, steps, 200]
type Dense[B tensor.Backend] struct {
	in, out int
	kernel  *Parameter[B]
	bias    *Parameter[B]
}

// NewDense creates a new Dense layer.
func NewDense[B tensor.Backend](opts DenseOptions, rng *rand.Rand, backend B) *Dense[B] {
	if opts.In <= 0 || opts.Out <= 0 {
		panic(fmt.Sprintf("dense: invalid size %d -> %d", opts.In, opts.Out))
	}
	if opts.Name == "" {
		opts.Name = "dense"
	}
	if opts.Kernel == nil {
		opts.Kernel = GlorotUniform
	}
	if opts.BiasIni == nil {
		opts.BiasIni = Zeros
	}

	d := &Dense[B]{
		in:     opts.In,
		out:    opts.Out,
		kernel: newWeight(joinName(opts.Name, "kernel"), tensor.Shape{opts.In, opts.Out}, opts.Kernel, rng, backend),
	}
	if !opts.NoBias {
		d.bias = newWeight(joinName(opts.Name, "bias"), tensor.Shape{opts.Out}, opts.BiasIni, rng, backend)
	}
	return d
}

// Forward computes x @ W + b over the last axis.
func (d *Dense[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 || shape.Last() != d.in {
		panic(fmt.Sprintf("dense: expected [..., %d] input, got %v", d.in, shape))
	}

	x := input
	if len(shape) > 2 {
		x = input.Reshape(-1, d.in)
	}

	y := x.MatMul(d.kernel.Tensor())
	if d.bias != nil {
		y = y.Add(d.bias.Tensor())
	}

	if len(shape) > 2 {
		outShape := append(shape[:len(shape)-1].Clone(), d.out)
		y = y.Reshape(outShape...)
	}
	return y
}

// ComputeOutputShape replaces the last dimension with the output size.
func (d *Dense[B]) ComputeOutputShape(inputShape tensor.Shape) tensor.Shape {
	out := inputShape.Clone()
	out[len(out)-1] = d.out
	return out
}

// Parameters returns [kernel, bias] (bias omitted when disabled).
func (d *Dense[B]) Parameters() []*Parameter[B] {
	if d.bias == nil {
		return []*Parameter[B]{d.kernel}
	}
	return []*Parameter[B]{d.kernel, d.bias}
}

// Kernel returns the [in, out] weight parameter.
func (d *Dense[B]) Kernel() *Parameter[B] { return d.kernel }

// Bias returns the bias parameter, or nil.
func (d *Dense[B]) Bias() *Parameter[B] { return d.bias }
