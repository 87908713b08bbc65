package tensor

import (
	"fmt"
	"slices"
)

// Shape lists tensor dimensions, outermost first. An empty Shape is a scalar.
type Shape []int

// NumElements returns the product of the dimensions.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate reports the first non-positive dimension.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, s[i])
	}
	return nil
}

// Equal reports whether s and other have the same dimensions.
func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

// Last is the innermost dimension, 1 for scalars.
func (s Shape) Last() int {
	if len(s) == 0 {
		return 1
	}
	return s[len(s)-1]
}

// Clone returns a copy of s that never aliases it.
func (s Shape) Clone() Shape {
	return append(make(Shape, 0, len(s)), s...)
}

// ComputeStrides returns row-major element strides.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// BroadcastShapes aligns a and b from the right and returns the shape both
// broadcast to. Two dimensions are compatible when they are equal or one is
// 1; missing leading dimensions count as 1. The flag is false when the
// shapes are already identical.
//
//	(3, 1) with (3, 5) gives (3, 5), true
//	(2, 4) with (4)    gives (2, 4), true
//	(3, 4) with (3, 5) is an error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	out := make(Shape, max(len(a), len(b)))
	broadcast := len(a) != len(b)
	for i := 1; i <= len(out); i++ {
		da, db := dimFromRight(a, i), dimFromRight(b, i)
		switch {
		case da == db:
			out[len(out)-i] = da
		case da == 1:
			out[len(out)-i] = db
			broadcast = true
		case db == 1:
			out[len(out)-i] = da
			broadcast = true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v do not broadcast (dimension %d: %d vs %d)",
				a, b, len(out)-i, da, db)
		}
	}
	return out, broadcast, nil
}

// dimFromRight returns the i-th dimension counted from the innermost (i=1).
func dimFromRight(s Shape, i int) int {
	if i > len(s) {
		return 1
	}
	return s[len(s)-i]
}
