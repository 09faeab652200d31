/*package cell implements the packed cell record, the unit of tree-force
work. One Buffer holds the inputs and accumulated outputs for a batch of up
to MinPart particles, along with the geometry and ownership bookkeeping
needed to ship the batch to another rank. The field declaration order below
is the wire order: lib/wire derives the cross-rank message layout from it,
so fields must never be added, removed, or reordered without recomputing
padBytes and letting the layout extent check run.
*/
package cell

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// MinPart is the particle capacity of one cell. The tree walk guarantees
	// leaf cells never hold more particles than this.
	MinPart = 16
	// MaxInput is the number of per-particle input components (position,
	// velocity, smoothing length, density, and the rest of the force
	// kernel's read set).
	MaxInput = 21
	// MaxOutput is the number of per-particle accumulated force components.
	MaxOutput = 17
	// GravWidth is the number of multipole terms accumulated for the cell
	// as a whole.
	GravWidth = 20

	// tailBytes is the size of everything after the float64 block: the
	// int32 scalars and indices, and the two byte tags per particle.
	tailBytes = 4*(MinPart+7) + 2*MinPart
	// padBytes rounds the record up to 8-byte alignment so its size is
	// identical on every rank of a build.
	padBytes = (8 - tailBytes%8) % 8
)

// ErrCapacity is returned when appending a particle to a full cell. The tree
// walk's partitioning invariant makes this unreachable in a correct run, so
// callers treat it as fatal.
var ErrCapacity = fmt.Errorf("cell already holds %d particles", MinPart)

// Buffer is one unit of force-computation work. All arrays indexed by
// particle position are valid only below NPart.
type Buffer struct {
	Input   [MinPart][MaxInput]float64
	Sums    [MinPart][MaxOutput]float64
	Grav    [GravWidth]float64
	Pos     [3]float64
	Size    float64
	RCut    float64
	TsMin   [MinPart]float64
	VsigMax [MinPart]float64

	CellID  int32
	NPart   int32
	PartIdx [MinPart]int32
	NDrag   int32
	NStokes int32
	NSuper  int32
	Owner   int32
	Pending int32

	Phase [MinPart]int8
	Bin   [MinPart]uint8

	Pad [padBytes]byte
}

// Particle is the per-particle input handed over by the tree walk: the force
// kernel's read set, the index of the particle in the global particle array,
// its type/phase tag, its neighbor-list bin, and flags for the follow-up
// work it needs.
type Particle struct {
	Input [MaxInput]float64
	Index int32
	Phase int8
	Bin   uint8

	Drag, Stokes, Super bool
}

// Reset clears a Buffer for reuse on a new tree cell. rank is the local
// process rank, which owns the cell until it is marked for exchange.
func (c *Buffer) Reset(cellID int32, rank int) {
	*c = Buffer{}
	c.CellID = cellID
	c.Owner = int32(rank)
	c.Pending = -1
	for i := range c.TsMin {
		c.TsMin[i] = math.Inf(1)
	}
}

// Append adds one particle to the cell. It fails with ErrCapacity if the
// cell is full: that means the tree walk broke its partitioning invariant
// upstream, and the caller must abort the run.
func (c *Buffer) Append(p Particle) error {
	if c.NPart >= MinPart {
		return ErrCapacity
	}

	i := c.NPart
	c.Input[i] = p.Input
	c.PartIdx[i] = p.Index
	c.Phase[i] = p.Phase
	c.Bin[i] = p.Bin
	c.NPart++

	if p.Drag {
		c.NDrag++
	}
	if p.Stokes {
		c.NStokes++
	}
	if p.Super {
		c.NSuper++
	}

	return nil
}

// AccumulateSums adds a force contribution to particle i. contrib must have
// MaxOutput components.
func (c *Buffer) AccumulateSums(i int, contrib []float64) {
	floats.Add(c.Sums[i][:], contrib)
}

// AccumulateGrav adds a multipole contribution to the cell's gravity terms.
// contrib must have GravWidth components.
func (c *Buffer) AccumulateGrav(contrib []float64) {
	floats.Add(c.Grav[:], contrib)
}

// SetGeometry records the cell center, half-width, and force cutoff radius.
func (c *Buffer) SetGeometry(pos [3]float64, size, rcut float64) {
	c.Pos = pos
	c.Size = size
	c.RCut = rcut
}

// ClearAccumulators zeroes the accumulated outputs (force sums, gravity
// terms, timestep bounds, signal speeds) while leaving the particle inputs
// and bookkeeping untouched. The exchange layer uses this on the first hop
// of a remote request so the reply carries only the contributions computed
// away from home.
func (c *Buffer) ClearAccumulators() {
	for i := range c.Sums {
		c.Sums[i] = [MaxOutput]float64{}
	}
	c.Grav = [GravWidth]float64{}
	for i := range c.TsMin {
		c.TsMin[i] = math.Inf(1)
		c.VsigMax[i] = 0
	}
}

// RecordTimestep folds one timestep bound and signal speed into particle
// i's running min/max. The timestep controller reads these once the cell is
// resolved.
func (c *Buffer) RecordTimestep(i int, ts, vsig float64) {
	if ts < c.TsMin[i] {
		c.TsMin[i] = ts
	}
	if vsig > c.VsigMax[i] {
		c.VsigMax[i] = vsig
	}
}
