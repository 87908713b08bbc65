package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/han/internal/autodiff"
	"github.com/born-ml/han/internal/backend/cpu"
	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/optim"
	"github.com/born-ml/han/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func param(t *testing.T, name string, values []float32, b Backend) *nn.Parameter[Backend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, b)
	require.NoError(t, err)
	return nn.NewParameter(name, x)
}

func gradFor(p *nn.Parameter[Backend], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	g := tensor.MustNewRaw(p.Tensor().Shape(), tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, "x", []float32{2.0}, backend)
	opt := optim.NewSGD([]*nn.Parameter[Backend]{p}, optim.SGDConfig{LR: 0.1}, backend)

	opt.Step(gradFor(p, 1.0))

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0
	assert.InDelta(t, 1.9, p.Tensor().Data()[0], 1e-6)
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, "x", []float32{1.0}, backend)
	opt := optim.NewSGD([]*nn.Parameter[Backend]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// v1 = 1, x = 1 - 0.1 = 0.9
	opt.Step(gradFor(p, 1.0))
	assert.InDelta(t, 0.9, p.Tensor().Data()[0], 1e-6)

	// v2 = 0.9*1 + 1 = 1.9, x = 0.9 - 0.19 = 0.71
	opt.Step(gradFor(p, 1.0))
	assert.InDelta(t, 0.71, p.Tensor().Data()[0], 1e-6)
}

func TestAdam_FirstSteps(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, "x", []float32{1.0, -1.0}, backend)
	opt := optim.NewAdam([]*nn.Parameter[Backend]{p}, optim.AdamConfig{LR: 0.1}, backend)

	// After bias correction the first step moves each weight by lr * sign(g).
	opt.Step(gradFor(p, 0.5, -2.0))
	assert.InDelta(t, 0.9, p.Tensor().Data()[0], 1e-5)
	assert.InDelta(t, -0.9, p.Tensor().Data()[1], 1e-5)

	// Second step with g = 0.5 again, computed by hand.
	opt.Step(gradFor(p, 0.5, -2.0))
	m := 0.9*0.05 + 0.1*0.5
	v := 0.999*0.00025 + 0.001*0.25
	mHat := m / (1 - 0.81)
	vHat := v / (1 - 0.999*0.999)
	want := 0.9 - 0.1*mHat/(math.Sqrt(vHat)+1e-7)
	assert.InDelta(t, want, p.Tensor().Data()[0], 1e-5)
	assert.Equal(t, 2, opt.GetTimestep())
}

func TestOptimizers_SkipFrozenAndMissing(t *testing.T) {
	backend := autodiff.New(cpu.New())
	frozen := param(t, "frozen", []float32{1}, backend)
	frozen.SetTrainable(false)
	idle := param(t, "idle", []float32{1}, backend)

	for _, name := range []string{"adam", "sgd"} {
		opt, err := optim.New(name, []*nn.Parameter[Backend]{frozen, idle}, 0.5, backend)
		require.NoError(t, err)
		opt.Step(gradFor(frozen, 1))
		assert.Equal(t, float32(1), frozen.Tensor().Data()[0], name)
		assert.Equal(t, float32(1), idle.Tensor().Data()[0], name)
	}
}

func TestNew_UnknownOptimizer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	_, err := optim.New[Backend]("rmsprop", nil, 0.1, backend)
	require.ErrorIs(t, err, optim.ErrUnknownOptimizer)
}

func TestAdam_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, "w", []float32{1, 2}, backend)
	src := optim.NewAdam([]*nn.Parameter[Backend]{p}, optim.AdamConfig{}, backend)
	src.Step(gradFor(p, 0.3, -0.4))
	src.Step(gradFor(p, 0.1, 0.2))

	sd := src.StateDict()
	require.Contains(t, sd, "m.w")
	require.Contains(t, sd, "v.w")

	q := param(t, "w", []float32{1, 2}, backend)
	copy(q.Tensor().Data(), p.Tensor().Data())
	dst := optim.NewAdam([]*nn.Parameter[Backend]{q}, optim.AdamConfig{}, backend)
	require.NoError(t, dst.LoadStateDict(sd))
	assert.Equal(t, 2, dst.GetTimestep())

	src.Step(gradFor(p, 0.5, 0.5))
	dst.Step(gradFor(q, 0.5, 0.5))
	assert.Equal(t, p.Tensor().Data(), q.Tensor().Data())
}

func TestSGD_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, "w", []float32{1}, backend)
	src := optim.NewSGD([]*nn.Parameter[Backend]{p}, optim.SGDConfig{LR: 0.1, Momentum: 0.5}, backend)
	src.Step(gradFor(p, 1))

	q := param(t, "w", []float32{1}, backend)
	copy(q.Tensor().Data(), p.Tensor().Data())
	dst := optim.NewSGD([]*nn.Parameter[Backend]{q}, optim.SGDConfig{LR: 0.1, Momentum: 0.5}, backend)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	src.Step(gradFor(p, 1))
	dst.Step(gradFor(q, 1))
	assert.Equal(t, p.Tensor().Data(), q.Tensor().Data())

	bad := map[string]*tensor.RawTensor{"velocity.w": tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)}
	require.ErrorIs(t, dst.LoadStateDict(bad), nn.ErrParameterShape)
}

func TestOptimizer_MinimizesQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	p := param(t, "x", []float32{3, -2}, backend)
	opt := optim.NewAdam([]*nn.Parameter[Backend]{p}, optim.AdamConfig{LR: 0.05}, backend)

	for i := 0; i < 500; i++ {
		backend.Tape().StartRecording()
		loss := p.Tensor().Mul(p.Tensor()).Sum()
		grads := autodiff.Backward(loss, backend)
		backend.Tape().StopRecording()
		backend.Tape().Clear()
		opt.Step(grads)
	}
	for _, v := range p.Tensor().Data() {
		assert.InDelta(t, 0, v, 0.1)
	}
}
