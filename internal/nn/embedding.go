package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/han/internal/tensor"
)

// Embedding is a lookup table that maps word indices to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim]
//   - Forward: indices [...] -> embeddings [..., EmbedDim]
//   - Backward: gradients scatter-add to weight rows
//
// Index 0 is the padding index; ComputeMask marks it invalid.
//
// Example:
//
//	embed := nn.NewEmbedding[Backend]("embedding", 10000, 100, rng, backend)
//	indices := tensor.MustFromSlice[int32]([]int32{5, 9, 0, 0}, tensor.Shape{1, 4}, backend)
//	vectors := embed.Forward(indices) // [1, 4, 100]
//	mask := embed.ComputeMask(indices) // [[1, 1, 0, 0]]
type Embedding[B tensor.Backend] struct {
	Weight   *Parameter[B]
	NumEmbed int
	EmbedDim int
}

// NewEmbedding creates a trainable embedding table initialized from
// U(-0.05, 0.05).
func NewEmbedding[B tensor.Backend](name string, numEmbeddings, embeddingDim int, rng *rand.Rand, backend B) *Embedding[B] {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		panic(fmt.Sprintf("embedding: invalid size %dx%d", numEmbeddings, embeddingDim))
	}
	shape := tensor.Shape{numEmbeddings, embeddingDim}
	return &Embedding[B]{
		Weight:   newWeight(joinName(name, "weight"), shape, Uniform(-0.05, 0.05), rng, backend),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
	}
}

// NewEmbeddingWithWeight wraps a pretrained [numEmbeddings, embeddingDim]
// matrix. The table is frozen: optimizers leave it unchanged.
func NewEmbeddingWithWeight[B tensor.Backend](name string, weight *tensor.Tensor[float32, B]) *Embedding[B] {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding weight must be 2D, got shape %v", shape))
	}
	return &Embedding[B]{
		Weight:   NewFrozenParameter(joinName(name, "weight"), weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
	}
}

// Forward looks up the vectors for indices.
// Panics if an index is outside [0, NumEmbed).
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	backend := indices.Backend()
	return tensor.New[float32, B](backend.Embedding(e.Weight.Tensor().Raw(), indices.Raw()), backend)
}

// ComputeMask returns a float mask with 1 where the index is not padding (0).
func (e *Embedding[B]) ComputeMask(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return PaddingMask(indices)
}

// Parameters returns [weight].
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

// PaddingMask returns 1 where indices != 0 and 0 elsewhere, same shape.
func PaddingMask[B tensor.Backend](indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	mask := tensor.Zeros[float32](indices.Shape(), indices.Backend())
	m := mask.Data()
	for i, idx := range indices.Data() {
		if idx != 0 {
			m[i] = 1
		}
	}
	return mask
}
