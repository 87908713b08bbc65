package tensor

import "fmt"

// Tensor is a typed view over a RawTensor. Operations on it dispatch to B,
// which for training is the autodiff backend recording onto a tape.
//
//	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
//	y := x.MatMul(x).Add(x)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps raw without copying.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if n := shape.NumElements(); n != len(data) {
		return nil, fmt.Errorf("shape %v holds %d elements, got %d", shape, n, len(data))
	}
	t, err := empty[T](shape, b)
	if err != nil {
		return nil, err
	}
	copy(t.Data(), data)
	return t, nil
}

// MustFromSlice is FromSlice for constants and tests.
func MustFromSlice[T DType, B Backend](data []T, shape Shape, b B) *Tensor[T, B] {
	t, err := FromSlice(data, shape, b)
	if err != nil {
		panic(err)
	}
	return t
}

func empty[T DType, B Backend](shape Shape, b B) (*Tensor[T, B], error) {
	var zero T
	raw, err := NewRaw(shape, inferDataType(zero), b.Device())
	if err != nil {
		return nil, err
	}
	return New[T](raw, b), nil
}

func (t *Tensor[T, B]) Shape() Shape { return t.raw.Shape() }
func (t *Tensor[T, B]) DType() DataType { return t.raw.DType() }
func (t *Tensor[T, B]) Device() Device { return t.raw.Device() }
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }
func (t *Tensor[T, B]) Raw() *RawTensor { return t.raw }
func (t *Tensor[T, B]) Backend() B { return t.backend }
func (t *Tensor[T, B]) Clone() *Tensor[T, B] { return New[T](t.raw.Clone(), t.backend) }

// Detach copies the tensor out of the recorded graph; no gradient reaches
// the copy.
func (t *Tensor[T, B]) Detach() *Tensor[T, B] {
	return t.Clone()
}

// Data aliases the tensor's storage. Writes through it change the tensor.
func (t *Tensor[T, B]) Data() []T {
	var view any
	switch t.raw.DType() {
	case Float32:
		view = t.raw.AsFloat32()
	case Float64:
		view = t.raw.AsFloat64()
	case Int32:
		view = t.raw.AsInt32()
	}
	data, ok := view.([]T)
	if !ok {
		panic(fmt.Sprintf("tensor holds %s, not %T", t.raw.DType(), *new(T)))
	}
	return data
}

// Item returns the only element of a one-element tensor.
func (t *Tensor[T, B]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item on tensor of shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// At reads the element at indices, one per dimension.
func (t *Tensor[T, B]) At(indices ...int) T {
	return t.Data()[t.offset(indices)]
}

// Set writes value at indices.
func (t *Tensor[T, B]) Set(value T, indices ...int) {
	t.Data()[t.offset(indices)] = value
}

func (t *Tensor[T, B]) offset(indices []int) int {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("%d indices for rank %d tensor", len(indices), len(shape)))
	}
	off := 0
	for d, s := range t.raw.Strides() {
		i := indices[d]
		if i < 0 || i >= shape[d] {
			panic(fmt.Sprintf("index %d out of range for dimension %d of size %d", i, d, shape[d]))
		}
		off += i * s
	}
	return off
}

func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}
