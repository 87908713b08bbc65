package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/han/internal/backend/cpu"
	"github.com/born-ml/han/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      tensor.Shape
		want      tensor.Shape
		broadcast bool
		wantErr   bool
	}{
		{"equal", tensor.Shape{3, 5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false, false},
		{"column", tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, true, false},
		{"rank", tensor.Shape{2, 3, 4}, tensor.Shape{4}, tensor.Shape{2, 3, 4}, true, false},
		{"scalar", tensor.Shape{}, tensor.Shape{2}, tensor.Shape{2}, true, false},
		{"incompatible", tensor.Shape{3, 4}, tensor.Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := tensor.BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestShapeHelpers(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 4, s.Last())
	assert.Equal(t, 1, tensor.Shape{}.NumElements())
	require.Error(t, tensor.Shape{2, 0}.Validate())
}

func TestFromSliceAndAccessors(t *testing.T) {
	b := cpu.New()

	x, err := tensor.FromSlice[float32]([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))

	x.Set(9, 0, 1)
	assert.Equal(t, []float32{1, 9, 3, 4, 5, 6}, x.Data())
	assert.Panics(t, func() { x.At(2, 0) })

	_, err = tensor.FromSlice[float32]([]float32{1}, tensor.Shape{2}, b)
	require.Error(t, err)
}

func TestCreation(t *testing.T) {
	b := cpu.New()

	assert.Equal(t, []float32{1, 1, 1}, tensor.Ones[float32](tensor.Shape{3}, b).Data())
	assert.Equal(t, []int32{0, 0}, tensor.Zeros[int32](tensor.Shape{2}, b).Data())
	assert.Equal(t, []float64{1, 0, 0, 1}, tensor.Eye[float64](2, b).Data())

	u := tensor.Uniform[float32](tensor.Shape{100}, -0.5, 0.5, rand.New(rand.NewSource(1)), b)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, float32(-0.5))
		assert.Less(t, v, float32(0.5))
	}
}

func TestReshapeInfer(t *testing.T) {
	b := cpu.New()
	x := tensor.Zeros[float32](tensor.Shape{2, 3, 4}, b)

	assert.Equal(t, tensor.Shape{6, 4}, x.Reshape(-1, 4).Shape())
	assert.Panics(t, func() { x.Reshape(-1, -1) })
	assert.Panics(t, func() { x.Reshape(-1, 5) })
}

func TestDetachCopies(t *testing.T) {
	b := cpu.New()
	x := tensor.MustFromSlice[float32]([]float32{1, 2}, tensor.Shape{2}, b)
	d := x.Detach()
	d.Data()[0] = 7
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestParseDataType(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float32, tensor.Float64, tensor.Int32} {
		got, ok := tensor.ParseDataType(dt.String())
		assert.True(t, ok)
		assert.Equal(t, dt, got)
	}
	_, ok := tensor.ParseDataType("bool")
	assert.False(t, ok)
}
