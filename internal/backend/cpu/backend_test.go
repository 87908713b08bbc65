package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/han/internal/parallel"
	"github.com/born-ml/han/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw32(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func TestBinaryBroadcast(t *testing.T) {
	b := New()
	a := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	row := raw32(t, []float32{10, 20, 30}, 3)
	col := raw32(t, []float32{100, 200}, 2, 1)

	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, b.Add(a, row).AsFloat32())
	assert.Equal(t, []float32{99, 98, 97, 196, 195, 194}, b.Sub(col, a).AsFloat32())
	assert.Equal(t, []float32{100, 200, 300, 800, 1000, 1200}, b.Mul(a, col).AsFloat32())
	assert.Equal(t, []float32{0.1, 0.1, 0.1, 0.4, 0.25, 0.2}, b.Div(a, row).AsFloat32())
}

func TestBinaryDoesNotMutateInputs(t *testing.T) {
	b := New()
	a := raw32(t, []float32{1, 2}, 2)
	c := raw32(t, []float32{3, 4}, 2)
	_ = b.Add(a, c)
	assert.Equal(t, []float32{1, 2}, a.AsFloat32())
}

func TestBinaryIncompatibleShapesPanics(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.Add(raw32(t, make([]float32, 6), 2, 3), raw32(t, make([]float32, 4), 2, 2))
	})
}

func TestMatMul(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	w := raw32(t, []float32{1, 0, 0, 1, 1, 1}, 3, 2)
	assert.Equal(t, []float32{4, 5, 10, 11}, b.MatMul(x, w).AsFloat32())

	assert.Panics(t, func() { b.MatMul(x, x) })
}

func TestMatMulParallelMatchesSequential(t *testing.T) {
	rows, k, n := 130, 7, 5
	xs := make([]float32, rows*k)
	for i := range xs {
		xs[i] = float32(i%11) - 5
	}
	ws := make([]float32, k*n)
	for i := range ws {
		ws[i] = float32(i%3) - 1
	}

	par := New().MatMul(raw32(t, xs, rows, k), raw32(t, ws, k, n)).AsFloat32()
	seq := NewWithConfig(parallel.Config{Enabled: false}).MatMul(raw32(t, xs, rows, k), raw32(t, ws, k, n)).AsFloat32()
	assert.Equal(t, seq, par)
}

func TestUnary(t *testing.T) {
	b := New()
	x := raw32(t, []float32{-1000, 0, 1000}, 3)

	s := b.Sigmoid(x).AsFloat32()
	assert.InDelta(t, 0, s[0], 1e-7)
	assert.InDelta(t, 0.5, s[1], 1e-7)
	assert.InDelta(t, 1, s[2], 1e-7)

	th := b.Tanh(raw32(t, []float32{0, 1}, 2)).AsFloat32()
	assert.InDelta(t, 0, th[0], 1e-7)
	assert.InDelta(t, math.Tanh(1), th[1], 1e-6)

	e := b.Exp(raw32(t, []float32{0, 1}, 2)).AsFloat32()
	assert.InDelta(t, 1, e[0], 1e-7)
	assert.InDelta(t, math.E, e[1], 1e-6)

	assert.Equal(t, []float32{0.1, 0.5, 0.9}, b.Clamp(raw32(t, []float32{-3, 0.5, 7}, 3), 0.1, 0.9).AsFloat32())
	assert.Equal(t, []float32{2, 4}, b.MulScalar(raw32(t, []float32{1, 2}, 2), float32(2)).AsFloat32())
	assert.Equal(t, []float32{1.5, 2.5}, b.AddScalar(raw32(t, []float32{1, 2}, 2), 0.5).AsFloat32())
}

func TestSumDim(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	s0 := b.SumDim(x, 0, false)
	assert.Equal(t, tensor.Shape{3}, s0.Shape())
	assert.Equal(t, []float32{5, 7, 9}, s0.AsFloat32())

	s1 := b.SumDim(x, -1, true)
	assert.Equal(t, tensor.Shape{2, 1}, s1.Shape())
	assert.Equal(t, []float32{6, 15}, s1.AsFloat32())

	total := b.Sum(x)
	assert.Empty(t, total.Shape())
	assert.Equal(t, float32(21), total.AsFloat32()[0])
}

func TestTranspose(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	xt := b.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, xt.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, xt.AsFloat32())

	y := raw32(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	yt := b.Transpose(y, 1, 0, 2)
	assert.Equal(t, []float32{0, 1, 4, 5, 2, 3, 6, 7}, yt.AsFloat32())
}

func TestCatNarrow(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4}, 2, 2)
	y := raw32(t, []float32{5, 6}, 2, 1)

	c := b.Cat([]*tensor.RawTensor{x, y}, 1)
	assert.Equal(t, tensor.Shape{2, 3}, c.Shape())
	assert.Equal(t, []float32{1, 2, 5, 3, 4, 6}, c.AsFloat32())

	n := b.Narrow(c, 1, 1, 2)
	assert.Equal(t, tensor.Shape{2, 2}, n.Shape())
	assert.Equal(t, []float32{2, 5, 4, 6}, n.AsFloat32())

	assert.Panics(t, func() { b.Narrow(c, 1, 2, 2) })
}

func TestEmbedding(t *testing.T) {
	b := New()
	w := raw32(t, []float32{0, 0, 1, 1, 2, 2}, 3, 2)
	idx, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	copy(idx.AsInt32(), []int32{2, 0, 1, 1})

	out := b.Embedding(w, idx)
	assert.Equal(t, tensor.Shape{2, 2, 2}, out.Shape())
	assert.Equal(t, []float32{2, 2, 0, 0, 1, 1, 1, 1}, out.AsFloat32())

	idx.AsInt32()[0] = 3
	assert.Panics(t, func() { b.Embedding(w, idx) })
}

func TestReshapeCopies(t *testing.T) {
	b := New()
	x := raw32(t, []float32{1, 2, 3, 4}, 2, 2)
	r := b.Reshape(x, tensor.Shape{4})
	r.AsFloat32()[0] = 9
	assert.Equal(t, float32(1), x.AsFloat32()[0])
	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{3}) })
}
