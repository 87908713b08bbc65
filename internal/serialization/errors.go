package serialization

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrChecksumMismatch   = errors.New("serialization: tensor data checksum mismatch")
	ErrHeaderTooLarge     = errors.New("serialization: JSON header too large")
	ErrInvalidMagic       = errors.New("serialization: not a .born file")
	ErrUnsupportedVersion = errors.New("serialization: unsupported format version")
	ErrTensorNotFound     = errors.New("serialization: tensor not found")
)

// ValidationError reports a malformed tensor table entry.
type ValidationError struct {
	Kind    string   // e.g. "offset_overlap", "out_of_bounds"
	Tensors []string // names involved, if any
	Detail  string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("serialization: ")
	sb.WriteString(e.Kind)
	switch len(e.Tensors) {
	case 0:
	case 1:
		fmt.Fprintf(&sb, " (tensor %q)", e.Tensors[0])
	default:
		fmt.Fprintf(&sb, " (tensors %q)", e.Tensors)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func invalid(kind, detail string, tensors ...string) *ValidationError {
	return &ValidationError{Kind: kind, Tensors: tensors, Detail: detail}
}

// digest is the checksum stored in the fixed header.
func digest(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}
