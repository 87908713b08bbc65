// Package tensor provides the typed tensor, its raw storage and the Backend
// contract the network layers compute against.
package tensor

// DType is the set of element types a Tensor may hold.
type DType interface {
	~float32 | ~float64 | ~int32
}

// DataType tags raw storage with its element type.
type DataType int

const (
	Float32 DataType = iota
	Float64
	Int32
)

var dataTypes = [...]struct {
	name string
	size int
}{
	Float32: {"float32", 4},
	Float64: {"float64", 8},
	Int32:   {"int32", 4},
}

func (dt DataType) known() bool { return dt >= 0 && int(dt) < len(dataTypes) }

// Size is the element width in bytes.
func (dt DataType) Size() int {
	if !dt.known() {
		panic("unknown data type")
	}
	return dataTypes[dt].size
}

func (dt DataType) String() string {
	if !dt.known() {
		return "unknown"
	}
	return dataTypes[dt].name
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	for dt, info := range dataTypes {
		if info.name == s {
			return DataType(dt), true
		}
	}
	return 0, false
}

func inferDataType[T DType](T) DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	}
	panic("unsupported element type")
}
