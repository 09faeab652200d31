/*package wire derives and applies the cross-rank message layout of a cell
record. The layout is measured, not assumed: every field offset comes from
address subtraction against a live record, so any padding the compiler
inserts between fields is detected rather than silently shifting every later
field. The layout is static for a given build, so BuildLayout runs once per
process and the result is reused for every message.
*/
package wire

import (
	"errors"
	"fmt"

	"unsafe"

	"github.com/sphgrav/treeforce/lib/cell"
)

// Kind identifies the primitive type of one field of the record.
type Kind int

const (
	Real8 Kind = iota // 8-byte real
	Int4              // 4-byte integer
	Int1              // 1-byte integer
)

// Size returns the size of one element of the Kind in bytes.
func (k Kind) Size() uintptr {
	switch k {
	case Real8:
		return 8
	case Int4:
		return 4
	case Int1:
		return 1
	}
	panic("Internal error: unrecognized primitive kind.")
}

func (k Kind) String() string {
	switch k {
	case Real8:
		return "real8"
	case Int4:
		return "int4"
	case Int1:
		return "int1"
	}
	return "unknown"
}

// PrimitiveLayout describes one field of the record: its element count, its
// primitive kind, and its byte offset from the record's base address.
type PrimitiveLayout struct {
	Count  int
	Kind   Kind
	Offset uintptr
}

// Layout is the full wire description of a cell record. Fields are in
// declaration order and are contiguous: each field starts where the previous
// one ends, and the last one ends at Extent.
type Layout struct {
	Fields []PrimitiveLayout
	Extent uintptr
}

// ErrLayoutMismatch means the derived layout does not tile the in-memory
// record exactly. A run that sends even one message with a mismatched layout
// corrupts every transfer after it, so this error is always fatal.
var ErrLayoutMismatch = errors.New("wire layout does not match record size")

// probe is one field to be measured: a pointer to its first element, its
// element count, and its primitive kind.
type probe struct {
	p     unsafe.Pointer
	count int
	kind  Kind
}

// BuildLayout derives the wire layout of a cell record by probing the fields
// of sample in declaration order. It fails with an error wrapping
// ErrLayoutMismatch if the fields do not tile the record exactly, which
// means the compiler inserted padding the record's explicit Pad field does
// not account for.
func BuildLayout(sample *cell.Buffer) (*Layout, error) {
	probes := []probe{
		{unsafe.Pointer(&sample.Input), cell.MinPart * cell.MaxInput, Real8},
		{unsafe.Pointer(&sample.Sums), cell.MinPart * cell.MaxOutput, Real8},
		{unsafe.Pointer(&sample.Grav), cell.GravWidth, Real8},
		{unsafe.Pointer(&sample.Pos), 3, Real8},
		{unsafe.Pointer(&sample.Size), 1, Real8},
		{unsafe.Pointer(&sample.RCut), 1, Real8},
		{unsafe.Pointer(&sample.TsMin), cell.MinPart, Real8},
		{unsafe.Pointer(&sample.VsigMax), cell.MinPart, Real8},
		{unsafe.Pointer(&sample.CellID), 1, Int4},
		{unsafe.Pointer(&sample.NPart), 1, Int4},
		{unsafe.Pointer(&sample.PartIdx), cell.MinPart, Int4},
		{unsafe.Pointer(&sample.NDrag), 1, Int4},
		{unsafe.Pointer(&sample.NStokes), 1, Int4},
		{unsafe.Pointer(&sample.NSuper), 1, Int4},
		{unsafe.Pointer(&sample.Owner), 1, Int4},
		{unsafe.Pointer(&sample.Pending), 1, Int4},
		{unsafe.Pointer(&sample.Phase), cell.MinPart, Int1},
		{unsafe.Pointer(&sample.Bin), cell.MinPart, Int1},
		{unsafe.Pointer(&sample.Pad), len(sample.Pad), Int1},
	}

	return buildLayout(
		unsafe.Pointer(sample), unsafe.Sizeof(*sample), probes,
	)
}

// buildLayout measures the given field probes against a record at base with
// the given true size. It is separate from BuildLayout so that tests can
// feed it deliberately broken records.
func buildLayout(
	base unsafe.Pointer, size uintptr, probes []probe,
) (*Layout, error) {
	l := &Layout{Fields: make([]PrimitiveLayout, len(probes))}

	end := uintptr(0)
	for i, pr := range probes {
		off := uintptr(pr.p) - uintptr(base)
		if off != end {
			return nil, fmt.Errorf(
				"%w: field %d starts at byte %d, but the previous field "+
					"ends at byte %d", ErrLayoutMismatch, i, off, end,
			)
		}

		l.Fields[i] = PrimitiveLayout{pr.count, pr.kind, off}
		end = off + uintptr(pr.count)*pr.kind.Size()
	}

	l.Extent = end
	if l.Extent != size {
		return nil, fmt.Errorf(
			"%w: the derived extent is %d bytes, but the record is %d bytes",
			ErrLayoutMismatch, l.Extent, size,
		)
	}

	return l, nil
}
