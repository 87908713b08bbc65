package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/han/internal/tensor"
)

// Initializer fills a new weight of the given shape.
type Initializer func(shape tensor.Shape, rng *rand.Rand) []float32

// fans follows the Keras convention: (in, out) for 2D kernels and
// (n, n) for vectors.
func fans(shape tensor.Shape) (fanIn, fanOut int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return shape[0], shape[0]
	default:
		receptive := 1
		for _, d := range shape[:len(shape)-2] {
			receptive *= d
		}
		return shape[len(shape)-2] * receptive, shape[len(shape)-1] * receptive
	}
}

// GlorotUniform draws from U(-limit, limit) with limit = sqrt(6 / (fan_in + fan_out)).
func GlorotUniform(shape tensor.Shape, rng *rand.Rand) []float32 {
	fanIn, fanOut := fans(shape)
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return Uniform(-limit, limit)(shape, rng)
}

// Uniform returns an initializer drawing from U(low, high).
func Uniform(low, high float64) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) []float32 {
		data := make([]float32, shape.NumElements())
		for i := range data {
			data[i] = float32(low + (high-low)*rng.Float64())
		}
		return data
	}
}

// Zeros fills with zeros.
func Zeros(shape tensor.Shape, _ *rand.Rand) []float32 {
	return make([]float32, shape.NumElements())
}

// Orthogonal produces a matrix whose rows or columns (whichever are fewer)
// are orthonormal, flattening leading dimensions into rows.
//
// A normal random matrix of the tall orientation is orthonormalized column by
// column with modified Gram-Schmidt, which matches QR with a positive R
// diagonal, then transposed back when the target is wide.
func Orthogonal(shape tensor.Shape, rng *rand.Rand) []float32 {
	if len(shape) < 2 {
		panic(fmt.Sprintf("orthogonal: need at least 2 dimensions, got %v", shape))
	}
	cols := shape[len(shape)-1]
	rows := shape.NumElements() / cols

	n, m := max(rows, cols), min(rows, cols)
	q := make([][]float64, m) // q[j] is column j, length n
	for j := range q {
		for {
			v := make([]float64, n)
			for i := range v {
				v[i] = rng.NormFloat64()
			}
			for k := 0; k < j; k++ {
				dot := 0.0
				for i := range v {
					dot += v[i] * q[k][i]
				}
				for i := range v {
					v[i] -= dot * q[k][i]
				}
			}
			norm := 0.0
			for _, x := range v {
				norm += x * x
			}
			norm = math.Sqrt(norm)
			if norm < 1e-6 {
				continue
			}
			for i := range v {
				v[i] /= norm
			}
			q[j] = v
			break
		}
	}

	out := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if rows >= cols {
				out[r*cols+c] = float32(q[c][r])
			} else {
				out[r*cols+c] = float32(q[r][c])
			}
		}
	}
	return out
}

// newWeight creates a parameter initialized by init.
func newWeight[B tensor.Backend](name string, shape tensor.Shape, init Initializer, rng *rand.Rand, backend B) *Parameter[B] {
	t, err := tensor.FromSlice[float32, B](init(shape, rng), shape, backend)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	return NewParameter(name, t)
}

// joinName builds a hierarchical parameter name.
func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
