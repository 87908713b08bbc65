package serialization

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/born-ml/han/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawOf(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func sampleState(t *testing.T) map[string]*tensor.RawTensor {
	step, err := tensor.NewRaw(tensor.Shape{}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	step.AsInt32()[0] = 42

	return map[string]*tensor.RawTensor{
		"attention.W": rawOf(t, []float32{1, 2, 3, 4}, 2, 2),
		"attention.u": rawOf(t, []float32{5, 6}, 2),
		"adam.step":   step,
	}
}

func TestRoundTrip(t *testing.T) {
	state := sampleState(t)
	var buf bytes.Buffer

	err := Write(&buf, state, Header{
		Version:   "test",
		ModelType: "HierarchicalAttention",
		Metadata:  map[string]string{"max_seq": "10"},
	})
	require.NoError(t, err)

	f, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, f.Header.FormatVersion)
	assert.Equal(t, "HierarchicalAttention", f.Header.ModelType)
	assert.Equal(t, "10", f.Header.Metadata["max_seq"])
	assert.NotZero(t, f.Flags&FlagHasMetadata)
	require.Len(t, f.StateDict, 3)

	w, err := f.Tensor("attention.W")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, w.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, w.AsFloat32())

	s, err := f.Tensor("adam.step")
	require.NoError(t, err)
	assert.Equal(t, int32(42), s.AsInt32()[0])

	_, err = f.Tensor("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)
}

func TestDataAligned(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleState(t), Header{}))

	// fixed header + JSON + padding + data (4*4 + 2*4 + 4 bytes)
	assert.Equal(t, 0, (buf.Len()-28)%HeaderAlignment)
}

func TestChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleState(t), Header{}))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(corrupted))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestInvalidMagicAndVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleState(t), Header{}))
	data := buf.Bytes()

	bad := append([]byte(nil), data...)
	copy(bad, "NOPE")
	_, err := Read(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidMagic)

	bad = append([]byte(nil), data...)
	bad[4] = 9
	_, err = Read(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestValidateTensorName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"word_encoder.forward.kernel", true},
		{"", false},
		{"../etc/passwd", false},
		{"a/b", false},
		{"nul\x00byte", false},
	}
	for _, tt := range tests {
		err := ValidateTensorName(tt.name)
		if tt.valid {
			assert.NoError(t, err, tt.name)
			continue
		}
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), tt.name)
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	ok := []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}
	require.NoError(t, ValidateTensorOffsets(ok, 16))

	overlap := []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 4, Size: 8}}
	require.Error(t, ValidateTensorOffsets(overlap, 16))

	outside := []TensorMeta{{Name: "a", Offset: 0, Size: 32}}
	require.Error(t, ValidateTensorOffsets(outside, 16))
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.born")
	require.NoError(t, WriteFile(path, sampleState(t), Header{ModelType: "x"}))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, f.StateDict, 3)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.born"))
	require.Error(t, err)
}
