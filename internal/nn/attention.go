package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/han/internal/tensor"
)

// Attention build errors.
var (
	ErrInputRank          = errors.New("attention: input must be rank 3 (batch, steps, features)")
	ErrFeatureDimMismatch = errors.New("attention: feature dimension differs from built size")
)

// DefaultEpsilon is the normalization floor of Attention and the clipping
// bound of BinaryCrossEntropy.
const DefaultEpsilon = 1e-7

// AttentionOptions configures an Attention layer.
type AttentionOptions struct {
	Name string // parameter name prefix, default "attention"

	// NoBias drops the b term from the hidden projection.
	NoBias bool

	WRegularizer, BRegularizer, URegularizer Regularizer
	WConstraint, BConstraint, UConstraint    Constraint

	// Epsilon is added to the weight sum before normalizing. Default 1e-7.
	Epsilon float32

	// Rand drives weight initialization at build time. Default: seeded from 1.
	Rand *rand.Rand
}

// Attention pools a (batch, steps, features) sequence into a single
// (batch, features) vector with a learned context vector.
//
// Per step t the layer scores the input against u:
//
//	uit = tanh(x_t·W + b)
//	a_t = exp(uit·u) * mask_t
//	a_t = a_t / (Σ_t a_t + ε)
//	out = Σ_t a_t * x_t
//
// The output mask is always nil: pooling consumes the step axis.
//
// The layer is built lazily. Build creates W [F, F], b [F] and u [F] for a
// given input shape; Forward builds on first use when Build was not called.
//
// Example:
//
//	att := nn.NewAttention[Backend](nn.AttentionOptions{Name: "word_attention"})
//	if err := att.Build(tensor.Shape{32, 50, 200}, backend); err != nil {
//	    return err
//	}
//	sentences := att.Forward(h, mask) // [32, 200]
type Attention[B tensor.Backend] struct {
	opts     AttentionOptions
	features int

	w *Parameter[B]
	b *Parameter[B]
	u *Parameter[B]
}

// NewAttention creates an unbuilt attention layer.
func NewAttention[B tensor.Backend](opts AttentionOptions) *Attention[B] {
	if opts.Name == "" {
		opts.Name = "attention"
	}
	if opts.Epsilon == 0 {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1)) //nolint:gosec // weight init, not crypto
	}
	return &Attention[B]{opts: opts}
}

// Build creates the layer weights for inputShape (batch, steps, features).
//
// Building again with the same feature size is a no-op.
func (a *Attention[B]) Build(inputShape tensor.Shape, backend B) error {
	if len(inputShape) != 3 {
		return fmt.Errorf("%w: got shape %v", ErrInputRank, inputShape)
	}
	f := inputShape[2]
	if a.Built() {
		if f != a.features {
			return fmt.Errorf("%w: built for %d, got %d", ErrFeatureDimMismatch, a.features, f)
		}
		return nil
	}
	if f <= 0 {
		return fmt.Errorf("%w: got shape %v", ErrInputRank, inputShape)
	}

	rng := a.opts.Rand
	a.w = newWeight(joinName(a.opts.Name, "W"), tensor.Shape{f, f}, GlorotUniform, rng, backend)
	a.w.Regularizer, a.w.Constraint = a.opts.WRegularizer, a.opts.WConstraint
	if !a.opts.NoBias {
		a.b = newWeight(joinName(a.opts.Name, "b"), tensor.Shape{f}, Zeros, rng, backend)
		a.b.Regularizer, a.b.Constraint = a.opts.BRegularizer, a.opts.BConstraint
	}
	// u is a [F] vector; glorot fans of a 1D shape are (F, F).
	a.u = newWeight(joinName(a.opts.Name, "u"), tensor.Shape{f}, GlorotUniform, rng, backend)
	a.u.Regularizer, a.u.Constraint = a.opts.URegularizer, a.opts.UConstraint
	a.features = f
	return nil
}

// Built reports whether the weights exist.
func (a *Attention[B]) Built() bool {
	return a.w != nil
}

// Forward returns the attention-pooled (batch, features) output.
// mask is (batch, steps) with 1 for valid steps, or nil.
func (a *Attention[B]) Forward(x, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	weights := a.Weights(x, mask)
	shape := x.Shape()
	batch, steps := shape[0], shape[1]
	return x.Mul(weights.Reshape(batch, steps, 1)).SumDim(1, false)
}

// Weights returns the normalized attention weights (batch, steps).
func (a *Attention[B]) Weights(x, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if err := a.Build(x.Shape(), x.Backend()); err != nil {
		panic(err.Error())
	}
	shape := x.Shape()
	batch, steps, f := shape[0], shape[1], shape[2]
	if mask != nil && !mask.Shape().Equal(tensor.Shape{batch, steps}) {
		panic(fmt.Sprintf("attention: mask shape %v does not match input %v", mask.Shape(), shape))
	}

	hidden := x.Reshape(batch*steps, f).MatMul(a.w.Tensor())
	if a.b != nil {
		hidden = hidden.Add(a.b.Tensor())
	}
	uit := tanh(hidden)

	weights := uit.MatMul(a.u.Tensor().Reshape(f, 1)).Reshape(batch, steps).Exp()
	if mask != nil {
		weights = weights.Mul(mask)
	}
	total := weights.SumDim(1, true).AddScalar(a.opts.Epsilon)
	return weights.Div(total)
}

// ComputeMask always returns nil; the step axis does not survive pooling.
func (a *Attention[B]) ComputeMask(_ *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nil
}

// ComputeOutputShape maps (batch, steps, features) to (batch, features).
func (a *Attention[B]) ComputeOutputShape(inputShape tensor.Shape) tensor.Shape {
	return tensor.Shape{inputShape[0], inputShape[len(inputShape)-1]}
}

// Parameters returns [W, b, u], or [W, u] without bias. Nil until built.
func (a *Attention[B]) Parameters() []*Parameter[B] {
	if !a.Built() {
		return nil
	}
	if a.b == nil {
		return []*Parameter[B]{a.w, a.u}
	}
	return []*Parameter[B]{a.w, a.b, a.u}
}

// StateDict returns the weights keyed by parameter name.
func (a *Attention[B]) StateDict() map[string]*tensor.RawTensor {
	return StateDict[B](a)
}

// LoadStateDict copies weights from sd. An unbuilt layer is built from the
// shape of the stored W first.
func (a *Attention[B]) LoadStateDict(sd map[string]*tensor.RawTensor, backend B) error {
	if !a.Built() {
		name := joinName(a.opts.Name, "W")
		w, ok := sd[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
		if len(w.Shape()) != 2 {
			return fmt.Errorf("%w: %s: got %v", ErrParameterShape, name, w.Shape())
		}
		if err := a.Build(tensor.Shape{1, 1, w.Shape()[0]}, backend); err != nil {
			return err
		}
	}
	return LoadStateDict[B](a, sd)
}
