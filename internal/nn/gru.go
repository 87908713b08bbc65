package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/han/internal/tensor"
)

// ErrUnknownActivation is returned for an unsupported activation name.
var ErrUnknownActivation = errors.New("unknown activation")

// GRUOptions configures a GRU layer.
type GRUOptions struct {
	Name  string // parameter name prefix, default "gru"
	In    int    // input features
	Units int    // hidden size

	// ReturnSequences returns the full (batch, steps, units) output instead
	// of the last state (batch, units).
	ReturnSequences bool

	// GoBackwards processes the sequence from the last step to the first.
	// Sequence outputs are still indexed by input time step.
	GoBackwards bool

	// RecurrentActivation is "sigmoid" (default) or "hard_sigmoid".
	RecurrentActivation string
}

// GRU is a gated recurrent unit layer over (batch, steps, features) input.
//
// Gates follow the classic formulation with the reset gate applied before
// the recurrent matmul:
//
//	z  = σ(x·Wz + h·Uz + bz)
//	r  = σ(x·Wr + h·Ur + br)
//	hh = tanh(x·Wh + (r*h)·Uh + bh)
//	h' = z*h + (1-z)*hh
//
// Kernel [in, 3*units] and recurrent kernel [units, 3*units] hold the z, r
// and h blocks side by side. When a mask is given, masked steps carry the
// previous state forward unchanged.
type GRU[B tensor.Backend] struct {
	opts       GRUOptions
	activation func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	kernel    *Parameter[B]
	recurrent *Parameter[B]
	bias      *Parameter[B]
}

// NewGRU creates a GRU layer.
func NewGRU[B tensor.Backend](opts GRUOptions, rng *rand.Rand, backend B) (*GRU[B], error) {
	if opts.In <= 0 || opts.Units <= 0 {
		return nil, fmt.Errorf("gru: invalid size in=%d units=%d", opts.In, opts.Units)
	}
	act, err := gateActivation[B](opts.RecurrentActivation)
	if err != nil {
		return nil, fmt.Errorf("gru: %w", err)
	}
	if opts.Name == "" {
		opts.Name = "gru"
	}

	u := opts.Units
	return &GRU[B]{
		opts:       opts,
		activation: act,
		kernel:     newWeight(joinName(opts.Name, "kernel"), tensor.Shape{opts.In, 3 * u}, GlorotUniform, rng, backend),
		recurrent:  newWeight(joinName(opts.Name, "recurrent_kernel"), tensor.Shape{u, 3 * u}, Orthogonal, rng, backend),
		bias:       newWeight(joinName(opts.Name, "bias"), tensor.Shape{3 * u}, Zeros, rng, backend),
	}, nil
}

// Forward runs the recurrence. mask may be nil.
func (g *GRU[B]) Forward(input, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 || shape[2] != g.opts.In {
		panic(fmt.Sprintf("gru: expected [batch, steps, %d] input, got %v", g.opts.In, shape))
	}
	batch, steps, u := shape[0], shape[1], g.opts.Units
	if mask != nil && !mask.Shape().Equal(tensor.Shape{batch, steps}) {
		panic(fmt.Sprintf("gru: mask shape %v does not match input %v", mask.Shape(), shape))
	}

	// Input projections for every step at once.
	xw := input.Reshape(batch*steps, g.opts.In).
		MatMul(g.kernel.Tensor()).
		Add(g.bias.Tensor()).
		Reshape(batch, steps, 3*u)

	rec := g.recurrent.Tensor()
	uz, ur, uh := rec.Narrow(1, 0, u), rec.Narrow(1, u, u), rec.Narrow(1, 2*u, u)

	h := tensor.Zeros[float32](tensor.Shape{batch, u}, input.Backend())
	outputs := make([]*tensor.Tensor[float32, B], steps)

	for i := 0; i < steps; i++ {
		t := i
		if g.opts.GoBackwards {
			t = steps - 1 - i
		}

		xt := xw.Narrow(1, t, 1).Reshape(batch, 3*u)
		z := g.activation(xt.Narrow(1, 0, u).Add(h.MatMul(uz)))
		r := g.activation(xt.Narrow(1, u, u).Add(h.MatMul(ur)))
		hh := tanh(xt.Narrow(1, 2*u, u).Add(r.Mul(h).MatMul(uh)))

		// z*h + (1-z)*hh == hh + z*(h-hh)
		next := hh.Add(z.Mul(h.Sub(hh)))
		if mask != nil {
			m := mask.Narrow(1, t, 1)
			next = h.Add(m.Mul(next.Sub(h)))
		}
		h = next

		if g.opts.ReturnSequences {
			outputs[t] = h.Reshape(batch, 1, u)
		}
	}

	if !g.opts.ReturnSequences {
		return h
	}
	if steps == 1 {
		return outputs[0]
	}
	return tensor.Cat(outputs, 1)
}

// ComputeOutputShape returns (batch, steps, units) or (batch, units).
func (g *GRU[B]) ComputeOutputShape(inputShape tensor.Shape) tensor.Shape {
	if g.opts.ReturnSequences {
		return tensor.Shape{inputShape[0], inputShape[1], g.opts.Units}
	}
	return tensor.Shape{inputShape[0], g.opts.Units}
}

// Units returns the hidden size.
func (g *GRU[B]) Units() int { return g.opts.Units }

// Parameters returns [kernel, recurrent_kernel, bias].
func (g *GRU[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{g.kernel, g.recurrent, g.bias}
}
