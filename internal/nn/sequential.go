package nn

import (
	"fmt"

	"github.com/born-ml/han/internal/tensor"
)

// Sequential feeds each layer's output to the next. The model uses it for
// the classification head:
//
//	head := nn.NewSequential[B](
//	    nn.NewDense(nn.DenseOptions{Name: "output", In: 200, Out: 1}, rng, backend),
//	    nn.NewSigmoid[B](),
//	)
type Sequential[B tensor.Backend] struct {
	layers []Layer[B]
}

func NewSequential[B tensor.Backend](layers ...Layer[B]) *Sequential[B] {
	return &Sequential[B]{layers: layers}
}

func (s *Sequential[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, l := range s.layers {
		x = l.Forward(x)
	}
	return x
}

// Parameters concatenates the layers' parameters in layer order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, l := range s.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (s *Sequential[B]) Add(l Layer[B]) { s.layers = append(s.layers, l) }

func (s *Sequential[B]) Len() int { return len(s.layers) }

// Layer returns layer i and panics when i is out of range.
func (s *Sequential[B]) Layer(i int) Layer[B] {
	if i < 0 || i >= len(s.layers) {
		panic(fmt.Sprintf("nn: sequential has %d layers, no layer %d", len(s.layers), i))
	}
	return s.layers[i]
}
