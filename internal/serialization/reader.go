package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/han/internal/tensor"
)

// File is a decoded .born file.
type File struct {
	Header    Header
	Flags     uint32
	StateDict map[string]*tensor.RawTensor
}

// Read decodes a .born stream, verifying magic, version, header limits,
// tensor extents and the data checksum.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)

	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(br, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}

	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(br, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	//nolint:gosec // G115: dataSize bounds are checked against the tensor table below
	if err := ValidateHeader(&header, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	if _, err := br.Discard(padding(FixedHeaderSize + int(headerSize))); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if digest(data) != stored {
		return nil, ErrChecksumMismatch
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw, err := rawFor(meta)
		if err != nil {
			return nil, err
		}
		copy(raw.Data(), data[meta.Offset:meta.Offset+meta.Size])
		stateDict[meta.Name] = raw
	}

	return &File{Header: header, Flags: flags, StateDict: stateDict}, nil
}

// ReadFile reads and decodes the .born file at path.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: path comes from the caller, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(f)
}

// Tensor returns the named tensor or ErrTensorNotFound.
func (f *File) Tensor(name string) (*tensor.RawTensor, error) {
	raw, ok := f.StateDict[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return raw, nil
}
