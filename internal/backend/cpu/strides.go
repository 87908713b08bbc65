package cpu

import "github.com/born-ml/han/internal/tensor"

// broadcastStrides maps in onto out: leading dimensions missing from in and
// dimensions of size 1 get stride 0 so the same element is read repeatedly.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	own := in.ComputeStrides()
	lead := len(out) - len(in)
	for i := lead; i < len(out); i++ {
		if d := in[i-lead]; d != 1 {
			strides[i] = own[i-lead]
		}
	}
	return strides
}

// sourceIndex converts flat position pos of a tensor with strides
// outStrides into an element offset under srcStrides.
func sourceIndex(pos int, outStrides, srcStrides []int) int {
	idx := 0
	for d, s := range outStrides {
		idx += (pos / s) * srcStrides[d]
		pos %= s
	}
	return idx
}
