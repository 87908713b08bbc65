// Package serialization reads and writes .born weight files.
//
// Layout (little endian):
//
//	0x00 magic "BORN"
//	0x04 uint32 format version (2)
//	0x08 uint32 flags
//	0x0C reserved
//	0x10 uint64 JSON header size
//	0x18 uint64 tensor data size
//	0x20 SHA-256 of the tensor data section
//	0x40 JSON header, zero padded to a 64-byte boundary
//	.... tensor data, tensors back to back in header order
package serialization

import (
	"time"

	"github.com/born-ml/han/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2
	HeaderAlignment = 64
	FixedHeaderSize = 64
	ChecksumSize    = 32
	ChecksumOffset  = 0x20
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	Version        string            `json:"version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint    bool           `json:"is_checkpoint"`
	Epoch           int            `json:"epoch"`
	Step            int64          `json:"step"`
	Loss            float64        `json:"loss"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config"`
	TrainingMeta    map[string]any `json:"training_meta"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "word_encoder.forward.kernel"
	DType  string `json:"dtype"`  // "float32", "float64" or "int32"
	Shape  []int  `json:"shape"`  // empty for scalars
	Offset int64  `json:"offset"` // bytes from start of tensor data
	Size   int64  `json:"size"`   // bytes
}

// rawFor allocates an empty tensor matching meta.
func rawFor(meta TensorMeta) (*tensor.RawTensor, error) {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, invalid("unsupported_dtype", meta.DType, meta.Name)
	}
	shape := tensor.Shape(meta.Shape)
	if int64(shape.NumElements()*dtype.Size()) != meta.Size {
		return nil, invalid("size_mismatch", "size does not match shape and dtype", meta.Name)
	}
	return tensor.NewRaw(shape, dtype, tensor.CPU)
}
