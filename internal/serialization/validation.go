package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Limits applied when decoding untrusted files.
const (
	MaxHeaderSize    = 100 << 20
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidateTensorName rejects names that are empty, too long or look like
// paths.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return invalid("invalid_name", "empty tensor name")
	case len(name) > MaxTensorNameLen:
		return invalid("name_too_long", fmt.Sprintf("%d bytes, limit %d", len(name), MaxTensorNameLen), name)
	case strings.Contains(name, ".."), strings.ContainsAny(name, "/\\\x00"):
		return invalid("invalid_name", "path elements are not allowed", name)
	}
	return nil
}

// ValidateTensorOffsets checks that every tensor lies inside the data
// section and that no two tensors share bytes.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return invalid("too_many_tensors", fmt.Sprintf("%d tensors, limit %d", len(tensors), MaxTensorCount))
	}

	byOffset := slices.Clone(tensors)
	slices.SortFunc(byOffset, func(a, b TensorMeta) int { return cmp.Compare(a.Offset, b.Offset) })

	var prev *TensorMeta
	for i := range byOffset {
		t := &byOffset[i]
		end := t.Offset + t.Size
		if t.Offset < 0 || t.Size < 0 {
			return invalid("negative_offset", fmt.Sprintf("offset %d size %d", t.Offset, t.Size), t.Name)
		}
		if end > dataSize {
			return invalid("out_of_bounds", fmt.Sprintf("ends at %d, data is %d bytes", end, dataSize), t.Name)
		}
		if prev != nil && prev.Offset+prev.Size > t.Offset {
			return invalid("offset_overlap", fmt.Sprintf("[%d,%d) and [%d,%d)",
				prev.Offset, prev.Offset+prev.Size, t.Offset, end), prev.Name, t.Name)
		}
		prev = t
	}
	return nil
}

// ValidateHeader checks the tensor table of h against a data section of
// dataSize bytes.
func ValidateHeader(h *Header, dataSize int64) error {
	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return invalid("duplicate_name", "tensor listed twice", t.Name)
		}
		seen[t.Name] = true
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
