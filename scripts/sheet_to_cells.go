package main

/* sheet_to_cells.go reads a gotetra phase-sheet file and pushes its
particles through a work stack in cell-sized batches, standing in for the
tree walk. It's a smoke test for the cell/stack plumbing against real
snapshot data and a template for wiring a real producer up. */

import (
	"fmt"
	"math"
	"os"

	"github.com/phil-mansfield/gotetra/render/geom"
	"github.com/phil-mansfield/gotetra/render/io"

	"github.com/sphgrav/treeforce/lib"
	"github.com/sphgrav/treeforce/lib/cell"
	"github.com/sphgrav/treeforce/lib/stack"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage:\n$ sheet_to_cells <sheet file>")
		os.Exit(1)
	}
	fname := os.Args[1]

	hd := &io.SheetHeader{}
	err := io.ReadSheetHeaderAt(fname, hd)
	if err != nil {
		lib.ExternalErrorf("%s", err.Error())
	}

	gw := int(hd.GridWidth)
	xg := make([]geom.Vec, gw*gw*gw)
	vg := make([]geom.Vec, gw*gw*gw)
	err = io.ReadSheetPositionsAt(fname, xg)
	if err != nil {
		lib.ExternalErrorf("%s", err.Error())
	}
	err = io.ReadSheetVelocitiesAt(fname, vg)
	if err != nil {
		lib.ExternalErrorf("%s", err.Error())
	}

	s := stack.New(0, 1024)
	buf := &cell.Buffer{}
	buf.Reset(0, 0)

	cells := int32(0)
	for i := range xg {
		p := cell.Particle{Index: int32(i)}
		for dim := 0; dim < 3; dim++ {
			p.Input[dim] = float64(xg[i][dim])
			p.Input[3+dim] = float64(vg[i][dim])
		}

		if err := buf.Append(p); err != nil {
			lib.InternalErrorf("%s", err.Error())
		}

		if buf.NPart == cell.MinPart {
			finishCell(buf)
			s.Push(buf)
			cells++
			buf.Reset(cells, 0)
		}
	}
	if buf.NPart > 0 {
		finishCell(buf)
		s.Push(buf)
		cells++
	}

	// Drain the stack the way the force pass would.
	n := int64(0)
	maxSize := 0.0
	for s.Len() > 0 {
		if err := s.Pop(buf); err != nil {
			lib.InternalErrorf("%s", err.Error())
		}
		n += int64(buf.NPart)
		if buf.Size > maxSize {
			maxSize = buf.Size
		}
	}

	fmt.Printf("%s: %d particles in %d cells (%d per cell), widest cell "+
		"%.4g Mpc/h\n", fname, n, cells, cell.MinPart, 2*maxSize)
}

// finishCell sets the cell's geometry to the bounding box of its particles.
func finishCell(c *cell.Buffer) {
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}

	for i := 0; i < int(c.NPart); i++ {
		for dim := 0; dim < 3; dim++ {
			lo[dim] = math.Min(lo[dim], c.Input[i][dim])
			hi[dim] = math.Max(hi[dim], c.Input[i][dim])
		}
	}

	pos := [3]float64{}
	size := 0.0
	for dim := 0; dim < 3; dim++ {
		pos[dim] = (lo[dim] + hi[dim]) / 2
		size = math.Max(size, (hi[dim]-lo[dim])/2)
	}

	c.SetGeometry(pos, size, 2*size)
}
