package nn_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/han/internal/autodiff"
	"github.com/born-ml/han/internal/backend/cpu"
	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	CPU     = *cpu.CPUBackend
	Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]
)

func randn(shape tensor.Shape, seed int64, b CPU) *tensor.Tensor[float32, CPU] {
	return tensor.Randn[float32](shape, rand.New(rand.NewSource(seed)), b)
}

// checkParamGradients compares tape gradients of loss with respect to params
// against central finite differences.
func checkParamGradients(t *testing.T, backend Backend, params []*nn.Parameter[Backend], loss func() *tensor.Tensor[float32, Backend], tol float64) {
	t.Helper()

	tape := backend.Tape()
	tape.Clear()
	tape.StartRecording()
	out := loss()
	grads := autodiff.Backward(out, backend)
	tape.StopRecording()
	tape.Clear()

	const h = 5e-3
	for _, p := range params {
		g, ok := grads[p.Tensor().Raw()]
		require.True(t, ok, "%s received no gradient", p.Name())
		analytic := g.AsFloat32()

		data := p.Tensor().Data()
		for i := range data {
			orig := data[i]
			data[i] = orig + h
			plus := float64(loss().Item())
			data[i] = orig - h
			minus := float64(loss().Item())
			data[i] = orig

			numeric := (plus - minus) / (2 * h)
			assert.InDelta(t, numeric, float64(analytic[i]), tol, "%s[%d]", p.Name(), i)
		}
	}
}
