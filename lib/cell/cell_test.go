package cell

import (
	"math"
	"testing"
)

func testParticle(idx int32) Particle {
	p := Particle{Index: idx, Phase: int8(idx % 4), Bin: uint8(idx % 8)}
	for j := range p.Input {
		p.Input[j] = float64(idx)*100 + float64(j)
	}
	return p
}

func TestAppendBound(t *testing.T) {
	c := &Buffer{}
	c.Reset(7, 0)

	for i := 0; i < MinPart; i++ {
		if err := c.Append(testParticle(int32(i))); err != nil {
			t.Fatalf("Expected append %d of %d to succeed, but got "+
				"error '%s'.", i+1, MinPart, err.Error())
		}
	}

	if c.NPart != MinPart {
		t.Errorf("Expected NPart = %d after filling the cell, got %d.",
			MinPart, c.NPart)
	}

	err := c.Append(testParticle(MinPart))
	if err != ErrCapacity {
		t.Errorf("Expected append %d to fail with ErrCapacity, but got "+
			"'%v'.", MinPart+1, err)
	}
	if c.NPart != MinPart {
		t.Errorf("Expected NPart to stay at %d after the failed append, "+
			"got %d.", MinPart, c.NPart)
	}
}

func TestAppendCounts(t *testing.T) {
	tests := []struct {
		drag, stokes, super           []bool
		nDrag, nStokes, nSuper, nPart int32
	}{
		{[]bool{false}, []bool{false}, []bool{false}, 0, 0, 0, 1},
		{[]bool{true}, []bool{false}, []bool{false}, 1, 0, 0, 1},
		{[]bool{true, true, false}, []bool{false, true, false},
			[]bool{false, false, true}, 2, 1, 1, 3},
	}

	for i := range tests {
		c := &Buffer{}
		c.Reset(int32(i), 0)

		for j := range tests[i].drag {
			p := testParticle(int32(j))
			p.Drag = tests[i].drag[j]
			p.Stokes = tests[i].stokes[j]
			p.Super = tests[i].super[j]
			if err := c.Append(p); err != nil {
				t.Fatalf("%d) Unexpected append error '%s'.", i, err.Error())
			}
		}

		if c.NPart != tests[i].nPart {
			t.Errorf("%d) Expected NPart = %d, got %d.",
				i, tests[i].nPart, c.NPart)
		}
		if c.NDrag != tests[i].nDrag {
			t.Errorf("%d) Expected NDrag = %d, got %d.",
				i, tests[i].nDrag, c.NDrag)
		}
		if c.NStokes != tests[i].nStokes {
			t.Errorf("%d) Expected NStokes = %d, got %d.",
				i, tests[i].nStokes, c.NStokes)
		}
		if c.NSuper != tests[i].nSuper {
			t.Errorf("%d) Expected NSuper = %d, got %d.",
				i, tests[i].nSuper, c.NSuper)
		}
	}
}

func TestReset(t *testing.T) {
	c := &Buffer{}
	c.Reset(1, 0)
	for i := 0; i < 3; i++ {
		if err := c.Append(testParticle(int32(i))); err != nil {
			t.Fatalf("Unexpected append error '%s'.", err.Error())
		}
	}
	c.AccumulateGrav(make([]float64, GravWidth))
	c.SetGeometry([3]float64{1, 2, 3}, 0.5, 2.0)

	c.Reset(42, 3)

	if c.CellID != 42 {
		t.Errorf("Expected CellID = 42 after Reset, got %d.", c.CellID)
	}
	if c.Owner != 3 {
		t.Errorf("Expected Owner = 3 after Reset, got %d.", c.Owner)
	}
	if c.Pending != -1 {
		t.Errorf("Expected Pending = -1 after Reset, got %d.", c.Pending)
	}
	if c.NPart != 0 || c.NDrag != 0 || c.NStokes != 0 || c.NSuper != 0 {
		t.Errorf("Expected all counters to be zero after Reset, got "+
			"NPart = %d, NDrag = %d, NStokes = %d, NSuper = %d.",
			c.NPart, c.NDrag, c.NStokes, c.NSuper)
	}
	for i := range c.TsMin {
		if !math.IsInf(c.TsMin[i], 1) {
			t.Errorf("Expected TsMin[%d] = +Inf after Reset, got %g.",
				i, c.TsMin[i])
		}
	}
	if c.Size != 0 || c.RCut != 0 {
		t.Errorf("Expected geometry to be cleared after Reset, got "+
			"Size = %g, RCut = %g.", c.Size, c.RCut)
	}
}

func TestAccumulate(t *testing.T) {
	c := &Buffer{}
	c.Reset(1, 0)
	if err := c.Append(testParticle(0)); err != nil {
		t.Fatalf("Unexpected append error '%s'.", err.Error())
	}

	contrib := make([]float64, MaxOutput)
	for j := range contrib {
		contrib[j] = float64(j + 1)
	}
	c.AccumulateSums(0, contrib)
	c.AccumulateSums(0, contrib)

	for j := range contrib {
		if c.Sums[0][j] != 2*contrib[j] {
			t.Errorf("Expected Sums[0][%d] = %g, got %g.",
				j, 2*contrib[j], c.Sums[0][j])
		}
	}

	grav := make([]float64, GravWidth)
	for j := range grav {
		grav[j] = 0.25 * float64(j)
	}
	c.AccumulateGrav(grav)
	for j := range grav {
		if c.Grav[j] != grav[j] {
			t.Errorf("Expected Grav[%d] = %g, got %g.", j, grav[j], c.Grav[j])
		}
	}

	c.RecordTimestep(0, 0.5, 10.0)
	c.RecordTimestep(0, 0.25, 5.0)
	c.RecordTimestep(0, 1.0, 20.0)
	if c.TsMin[0] != 0.25 {
		t.Errorf("Expected TsMin[0] = 0.25, got %g.", c.TsMin[0])
	}
	if c.VsigMax[0] != 20.0 {
		t.Errorf("Expected VsigMax[0] = 20, got %g.", c.VsigMax[0])
	}
}
