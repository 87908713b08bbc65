package cpu

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// Reshape returns a copy of t with a new shape of the same element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if newShape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.Shape(), t.NumElements(), newShape, newShape.NumElements()))
	}
	return t.Clone().WithShape(newShape)
}

// Transpose permutes dimensions according to axes.
// Without axes the last two dimensions are swapped.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		if ndim < 2 {
			panic(fmt.Sprintf("transpose: need at least 2 dimensions, got %v", shape))
		}
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = i
		}
		axes[ndim-1], axes[ndim-2] = axes[ndim-2], axes[ndim-1]
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes %v do not match rank %d", axes, ndim))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, a := range axes {
		if a < 0 || a >= ndim || seen[a] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[a] = true
		outShape[i] = shape[a]
	}

	result, err := tensor.NewRaw(outShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	elem := t.DType().Size()
	src := t.Data()
	dst := result.Data()
	inStrides := t.Strides()
	outStrides := outShape.ComputeStrides()

	// permuted[i] is the input stride walked by output dimension i.
	permuted := make([]int, ndim)
	for i, a := range axes {
		permuted[i] = inStrides[a]
	}

	for o := 0; o < result.NumElements(); o++ {
		in := sourceIndex(o, outStrides, permuted)
		copy(dst[o*elem:(o+1)*elem], src[in*elem:(in+1)*elem])
	}
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}

	first := tensors[0].Shape()
	dim = tensor.NormalizeDim(dim, len(first))

	total := 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) || t.DType() != tensors[0].DType() {
			panic(fmt.Sprintf("cat: incompatible tensors %v and %v", first, s))
		}
		for i := range s {
			if i != dim && s[i] != first[i] {
				panic(fmt.Sprintf("cat: shape mismatch %v vs %v at dim %d", first, s, i))
			}
		}
		total += s[dim]
	}

	outShape := first.Clone()
	outShape[dim] = total

	result, err := tensor.NewRaw(outShape, tensors[0].DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	elem := result.DType().Size()
	outer, _, inner := splitAt(outShape, dim)
	dst := result.Data()
	rowBytes := total * inner * elem

	offset := 0
	for _, t := range tensors {
		chunk := t.Shape()[dim] * inner * elem
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowBytes+offset:o*rowBytes+offset+chunk], src[o*chunk:(o+1)*chunk])
		}
		offset += chunk
	}
	return result
}

// Narrow returns length entries of dim starting at start.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim %d of %v", start, start+length, dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = length

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("narrow: %v", err))
	}

	elem := x.DType().Size()
	outer, size, inner := splitAt(shape, dim)
	src := x.Data()
	dst := result.Data()
	chunk := length * inner * elem
	for o := 0; o < outer; o++ {
		from := (o*size + start) * inner * elem
		copy(dst[o*chunk:(o+1)*chunk], src[from:from+chunk])
	}
	return result
}
