/*package eq is a simple package for telling whether two arrays are equal to
one another. It covers the primitive types that appear in cell records and
is mainly used by tests.*/
package eq

// Generic returns true if two arrays are the same type and have the same
// values and false otherwise. Only []byte, []int8, []uint8, []int32,
// []float64, and [][3]float64 are supported.
func Generic(x, y interface{}) bool {
	switch xx := x.(type) {
	case []byte:
		yy, ok := y.([]byte)
		if !ok {
			return false
		}
		return Bytes(xx, yy)
	case []int8:
		yy, ok := y.([]int8)
		if !ok {
			return false
		}
		return Int8s(xx, yy)
	case []int32:
		yy, ok := y.([]int32)
		if !ok {
			return false
		}
		return Int32s(xx, yy)
	case []float64:
		yy, ok := y.([]float64)
		if !ok {
			return false
		}
		return Float64s(xx, yy)
	case [][3]float64:
		yy, ok := y.([][3]float64)
		if !ok {
			return false
		}
		return Vec64s(xx, yy)
	default:
		return false
	}
}

// Bytes returns true if two []byte arrays are the same and false otherwise.
func Bytes(x, y []byte) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Int8s returns true if two []int8 arrays are the same and false otherwise.
func Int8s(x, y []int8) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Int32s returns true if two []int32 arrays are the same and false
// otherwise.
func Int32s(x, y []int32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Float64s returns true if two []float64 arrays are the same and false
// otherwise.
func Float64s(x, y []float64) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// Vec64s returns true if two [][3]float64 arrays are the same and false
// otherwise.
func Vec64s(x, y [][3]float64) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		for dim := 0; dim < 3; dim++ {
			if x[i][dim] != y[i][dim] {
				return false
			}
		}
	}
	return true
}
