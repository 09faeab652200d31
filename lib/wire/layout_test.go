package wire

import (
	"errors"
	"testing"

	"unsafe"

	"github.com/sphgrav/treeforce/lib/cell"
)

func TestBuildLayoutExtent(t *testing.T) {
	c := &cell.Buffer{}
	l, err := BuildLayout(c)
	if err != nil {
		t.Fatalf("Expected BuildLayout to succeed, but got error '%s'.",
			err.Error())
	}

	if l.Extent != unsafe.Sizeof(*c) {
		t.Errorf("Expected extent = %d, the in-memory record size, got %d.",
			unsafe.Sizeof(*c), l.Extent)
	}
	if l.Extent%8 != 0 {
		t.Errorf("Expected extent to be a multiple of 8, got %d.", l.Extent)
	}
}

func TestBuildLayoutFields(t *testing.T) {
	c := &cell.Buffer{}
	l, err := BuildLayout(c)
	if err != nil {
		t.Fatalf("Expected BuildLayout to succeed, but got error '%s'.",
			err.Error())
	}

	if len(l.Fields) != 19 {
		t.Fatalf("Expected 19 fields, got %d.", len(l.Fields))
	}
	if l.Fields[0].Offset != 0 {
		t.Errorf("Expected the first field at offset 0, got %d.",
			l.Fields[0].Offset)
	}

	end := uintptr(0)
	for i, f := range l.Fields {
		if f.Offset != end {
			t.Errorf("Field %d starts at byte %d, but the previous field "+
				"ends at byte %d.", i, f.Offset, end)
		}
		if f.Count < 0 {
			t.Errorf("Field %d has negative count %d.", i, f.Count)
		}
		end = f.Offset + uintptr(f.Count)*f.Kind.Size()
	}
	if end != l.Extent {
		t.Errorf("Expected the last field to end at the extent %d, got %d.",
			l.Extent, end)
	}

	// The first field is the particle input block, the last is the pad.
	if l.Fields[0].Kind != Real8 ||
		l.Fields[0].Count != cell.MinPart*cell.MaxInput {
		t.Errorf("Expected field 0 to be %d real8 values, got %d %s values.",
			cell.MinPart*cell.MaxInput, l.Fields[0].Count,
			l.Fields[0].Kind)
	}
	if l.Fields[len(l.Fields)-1].Kind != Int1 {
		t.Errorf("Expected the trailing pad to be int1, got %s.",
			l.Fields[len(l.Fields)-1].Kind)
	}
}

// gapped has compiler-inserted padding between its fields which its probe
// list does not account for.
type gapped struct {
	A int32
	B float64
}

// short is probed without its trailing field, so the derived extent falls
// short of the true record size.
type short struct {
	A float64
	B int32
	C int32
}

func TestBuildLayoutMismatch(t *testing.T) {
	g := &gapped{}
	_, err := buildLayout(unsafe.Pointer(g), unsafe.Sizeof(*g), []probe{
		{unsafe.Pointer(&g.A), 1, Int4},
		{unsafe.Pointer(&g.B), 1, Real8},
	})
	if !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("Expected a gapped record to fail with ErrLayoutMismatch, "+
			"got '%v'.", err)
	}

	s := &short{}
	_, err = buildLayout(unsafe.Pointer(s), unsafe.Sizeof(*s), []probe{
		{unsafe.Pointer(&s.A), 1, Real8},
		{unsafe.Pointer(&s.B), 1, Int4},
	})
	if !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("Expected a short probe list to fail with "+
			"ErrLayoutMismatch, got '%v'.", err)
	}
}

func TestKindSize(t *testing.T) {
	tests := []struct {
		kind Kind
		size uintptr
	}{
		{Real8, 8},
		{Int4, 4},
		{Int1, 1},
	}

	for i := range tests {
		if size := tests[i].kind.Size(); size != tests[i].size {
			t.Errorf("%d) Expected %s to have size %d, got %d.",
				i, tests[i].kind, tests[i].size, size)
		}
	}
}
