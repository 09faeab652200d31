package wire

/* codec.go turns a cell record into message bytes and back using only the
offsets and sizes in a Layout. Messages are written in system byte order:
every rank of a run is the same build (see lib.SystemByteOrder), so the
bytes can be copied field by field with no per-element conversion. */

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/sphgrav/treeforce/lib/cell"
)

// Marshal serializes c into a fresh byte array of length l.Extent. If you
// don't want to make excess heap allocations, use MarshalInto with a reused
// buffer instead.
func Marshal(l *Layout, c *cell.Buffer) []byte {
	return MarshalInto(l, c, make([]byte, l.Extent))
}

// MarshalInto serializes c into b, which must have length l.Extent, and
// returns b. Bytes covered by the record's trailing pad are written as
// zeros, never as whatever garbage the pad holds in memory.
func MarshalInto(l *Layout, c *cell.Buffer, b []byte) []byte {
	if uintptr(len(b)) != l.Extent {
		panic(fmt.Sprintf("Internal error: marshal buffer has %d bytes, "+
			"but the layout extent is %d bytes.", len(b), l.Extent))
	}

	base := unsafe.Pointer(c)
	n := len(l.Fields)
	for _, f := range l.Fields[:n-1] {
		src := bytesAt(unsafe.Pointer(uintptr(base)+f.Offset),
			f.Count*int(f.Kind.Size()))
		copy(b[f.Offset:], src)
	}

	// The last field is the pad.
	pad := l.Fields[n-1]
	for i := pad.Offset; i < l.Extent; i++ {
		b[i] = 0
	}

	return b
}

// Unmarshal deserializes a message into c using only the offsets and sizes
// in l. It fails with an error wrapping ErrLayoutMismatch if the message
// length does not equal the layout extent, which means the sender was built
// with a different record definition.
func Unmarshal(l *Layout, b []byte, c *cell.Buffer) error {
	if uintptr(len(b)) != l.Extent {
		return fmt.Errorf(
			"%w: the message holds %d bytes, but the layout extent is %d "+
				"bytes", ErrLayoutMismatch, len(b), l.Extent,
		)
	}

	base := unsafe.Pointer(c)
	for _, f := range l.Fields {
		dst := bytesAt(unsafe.Pointer(uintptr(base)+f.Offset),
			f.Count*int(f.Kind.Size()))
		copy(dst, b[f.Offset:])
	}

	return nil
}

// bytesAt returns a byte slice aliasing n bytes of memory starting at p.
// Callers must keep the underlying record alive while the slice is in use.
func bytesAt(p unsafe.Pointer, n int) []byte {
	var b []byte
	hd := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	hd.Data = uintptr(p)
	hd.Len, hd.Cap = n, n
	return b
}
