package tensor

import "math/rand"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t, err := empty[T](shape, b)
	if err != nil {
		panic(err)
	}
	return t
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, T(1), b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Eye creates a 2D identity matrix.
func Eye[T DType, B Backend](n int, b B) *Tensor[T, B] {
	t := Zeros[T, B](Shape{n, n}, b)
	for i := 0; i < n; i++ {
		t.Set(T(1), i, i)
	}
	return t
}

// Uniform creates a float tensor with values drawn uniformly from [low, high)
// using rng. Panics for integer element types.
func Uniform[T DType, B Backend](shape Shape, low, high float64, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	switch data := any(t.Data()).(type) {
	case []float32:
		for i := range data {
			data[i] = float32(low + (high-low)*rng.Float64())
		}
	case []float64:
		for i := range data {
			data[i] = low + (high-low)*rng.Float64()
		}
	default:
		panic("Uniform only supports float32 and float64 types")
	}
	return t
}

// Randn creates a float tensor with standard normal values drawn from rng.
// Panics for integer element types.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	switch data := any(t.Data()).(type) {
	case []float32:
		for i := range data {
			data[i] = float32(rng.NormFloat64())
		}
	case []float64:
		for i := range data {
			data[i] = rng.NormFloat64()
		}
	default:
		panic("Randn only supports float32 and float64 types")
	}
	return t
}
