/*package exchange implements the cross-rank cell exchange protocol. A cell
whose neighbor set reaches particles owned by another rank is marked: it gets
a slot in the local pending table, its owner field is rewritten to the remote
rank, and its bytes are shipped there using the measured wire layout. The
owner completes the missing contributions and ships the cell back, where the
remote sums are folded into the local record and the cell becomes resolved.

A cell may not be mutated locally between Mark and resolution: while a cell
is awaiting a remote completion it is exclusively owned by the remote rank.
This is protocol convention, not a lock, since the two mutators are separate
processes with no shared memory.
*/
package exchange

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sphgrav/treeforce/lib"
	"github.com/sphgrav/treeforce/lib/cell"
	"github.com/sphgrav/treeforce/lib/wire"
)

// State is the exchange state of a cell.
type State int

const (
	// LocalIncomplete cells have partial sums and have not been sent
	// anywhere. Cells that never need remote data stay in this state until
	// their producer finishes them.
	LocalIncomplete State = iota
	// AwaitingRemote cells have been shipped to their owner rank and must
	// not be mutated locally until the round trip completes.
	AwaitingRemote
	// Resolved cells have had their remote contributions folded in and are
	// ready for their sums to be scattered back to the particles.
	Resolved
)

var (
	// ErrStaleGeneration means a reply arrived tagged with the generation of
	// an earlier force pass. The reply is dropped; applying it would corrupt
	// the current pass's sums.
	ErrStaleGeneration = errors.New("reply from a stale force pass")
	// ErrHopLimit means a request chain exceeded the hop bound. A chain
	// longer than ranks-1 must revisit a rank, so this always indicates an
	// ownership cycle in the tree walk's bookkeeping.
	ErrHopLimit = errors.New("request chain exceeded the hop limit")
)

// Completer finishes the contributions a request cell is missing. It is
// supplied by the force kernels, which are external to this layer. It
// returns -1 when the cell is complete, or the rank that owns the data it
// still needs when ownership is chained.
type Completer func(c *cell.Buffer) (forward int, err error)

const (
	msgRequest = iota
	msgReply

	// Envelope: kind, generation, hops, origin, each 4 bytes.
	headerSize = 16
)

type pendingCell struct {
	local  *cell.Buffer
	cellID int32
	owner  int32
	active bool
}

// Exchanger runs one rank's side of the exchange protocol for one force
// pass. All configuration is passed in explicitly so that layout and
// protocol invariants are reproducible in isolated tests.
type Exchanger struct {
	rank       int
	ranks      int
	maxHops    int
	generation int
	layout     *wire.Layout
	tr         Transport

	pending []pendingCell
	free    []int32
	states  map[int32]State

	scratch cell.Buffer
	msgBuf  []byte
}

// New creates an Exchanger for the local rank of a force pass with the
// given generation number. The layout must already have passed its extent
// check: building it is the caller's startup responsibility.
func New(
	rank, generation int, cfg *lib.ExchangeConfig,
	l *wire.Layout, tr Transport,
) (*Exchanger, error) {
	if rank < 0 || rank >= cfg.Ranks {
		return nil, fmt.Errorf(
			"rank %d is outside the configured group [0, %d)",
			rank, cfg.Ranks,
		)
	}

	return &Exchanger{
		rank: rank, ranks: cfg.Ranks, maxHops: cfg.MaxHops,
		generation: generation, layout: l, tr: tr,
		states: map[int32]State{},
		msgBuf: make([]byte, headerSize+int(l.Extent)),
	}, nil
}

// Pending returns the number of cells awaiting remote completion.
func (e *Exchanger) Pending() int {
	return len(e.pending) - len(e.free)
}

// State returns the exchange state of a cell.
func (e *Exchanger) State(c *cell.Buffer) State {
	state, ok := e.states[c.CellID]
	if !ok {
		return LocalIncomplete
	}
	return state
}

// Mark transitions a cell to AwaitingRemote: it is assigned a slot in the
// pending table, its owner is rewritten to the remote rank, and its bytes
// are sent there. The caller must keep c in place and unmutated until the
// cell resolves.
func (e *Exchanger) Mark(c *cell.Buffer, owner int) error {
	if owner < 0 || owner >= e.ranks {
		return fmt.Errorf(
			"cell %d marked for rank %d, but the group only has ranks "+
				"[0, %d)", c.CellID, owner, e.ranks,
		)
	} else if owner == e.rank {
		return fmt.Errorf(
			"cell %d marked for rank %d, which is the local rank",
			c.CellID, owner,
		)
	} else if e.states[c.CellID] == AwaitingRemote {
		return fmt.Errorf(
			"cell %d is already awaiting a remote completion and may not "+
				"be marked again until it resolves", c.CellID,
		)
	}

	var slot int32
	if len(e.free) > 0 {
		slot = e.free[len(e.free)-1]
		e.free = e.free[:len(e.free)-1]
	} else {
		slot = int32(len(e.pending))
		e.pending = append(e.pending, pendingCell{})
	}

	c.Pending = slot
	c.Owner = int32(owner)
	e.pending[slot] = pendingCell{c, c.CellID, int32(owner), true}
	e.states[c.CellID] = AwaitingRemote

	return e.send(msgRequest, e.generation, 0, e.rank, owner, c)
}

// HandleOnce receives and processes one message. It returns the resolved
// local cell when the message was a completed reply, or nil when the
// message was a request served or forwarded on behalf of another rank.
// complete is invoked on request cells to fill in the locally owned
// contributions.
func (e *Exchanger) HandleOnce(complete Completer) (*cell.Buffer, error) {
	src, msg, err := e.tr.Recv()
	if err != nil {
		return nil, err
	}

	kind, gen, hops, origin, err := e.splitHeader(msg)
	if err != nil {
		return nil, err
	}

	if err := wire.Unmarshal(e.layout, msg[headerSize:], &e.scratch); err != nil {
		return nil, err
	}

	switch kind {
	case msgRequest:
		return nil, e.handleRequest(gen, hops, origin, complete)
	case msgReply:
		if gen != e.generation {
			return nil, fmt.Errorf(
				"%w: reply for cell %d has generation %d, current pass is "+
					"%d", ErrStaleGeneration, e.scratch.CellID, gen,
				e.generation,
			)
		}
		return e.resolve()
	}

	return nil, fmt.Errorf(
		"message from rank %d has unknown kind %d", src, kind,
	)
}

// Serve processes messages until the transport closes. Resolved cells are
// handed to the resolved callback. Stale replies are dropped, matching the
// rule that completions from earlier passes must not touch current cells.
func (e *Exchanger) Serve(complete Completer, resolved func(*cell.Buffer)) error {
	for {
		c, err := e.HandleOnce(complete)
		if errors.Is(err, ErrClosed) {
			return nil
		} else if errors.Is(err, ErrStaleGeneration) {
			continue
		} else if err != nil {
			return err
		}

		if c != nil && resolved != nil {
			resolved(c)
		}
	}
}

// handleRequest completes a request cell locally, or forwards it when the
// completer reports chained ownership. The finished cell goes back to the
// origin rank, not to whichever rank forwarded it here.
//
// On the first hop the cell's accumulators are cleared, so a reply carries
// only the contributions computed away from home and the origin can fold it
// in with a plain add. Later hops accumulate on top of earlier ones.
func (e *Exchanger) handleRequest(
	gen, hops, origin int, complete Completer,
) error {
	if hops == 0 {
		e.scratch.ClearAccumulators()
	}

	forward, err := complete(&e.scratch)
	if err != nil {
		return err
	}

	if forward < 0 {
		e.scratch.Owner = int32(origin)
		return e.send(msgReply, gen, hops, origin, origin, &e.scratch)
	}

	if forward == e.rank || forward >= e.ranks {
		return fmt.Errorf(
			"completer forwarded cell %d to rank %d, but the local rank is "+
				"%d and the group has ranks [0, %d)",
			e.scratch.CellID, forward, e.rank, e.ranks,
		)
	}
	if hops+1 > e.maxHops {
		return fmt.Errorf(
			"%w: cell %d has made %d hops in a group of %d ranks",
			ErrHopLimit, e.scratch.CellID, hops+1, e.ranks,
		)
	}

	e.scratch.Owner = int32(forward)
	return e.send(msgRequest, gen, hops+1, origin, forward, &e.scratch)
}

// resolve folds a reply's remote contributions into the awaiting local
// cell: force sums and gravity terms add, timestep bounds take the min, and
// signal speeds take the max. The pending slot is freed for reuse.
func (e *Exchanger) resolve() (*cell.Buffer, error) {
	slot := e.scratch.Pending
	if slot < 0 || int(slot) >= len(e.pending) || !e.pending[slot].active {
		return nil, fmt.Errorf(
			"reply for cell %d names pending slot %d, which is not an "+
				"outstanding request", e.scratch.CellID, slot,
		)
	}

	p := e.pending[slot]
	if p.cellID != e.scratch.CellID {
		return nil, fmt.Errorf(
			"reply for cell %d arrived in pending slot %d, which belongs "+
				"to cell %d", e.scratch.CellID, slot, p.cellID,
		)
	}

	c := p.local
	n := int(c.NPart)
	for i := 0; i < n; i++ {
		floats.Add(c.Sums[i][:], e.scratch.Sums[i][:])
		c.TsMin[i] = math.Min(c.TsMin[i], e.scratch.TsMin[i])
		c.VsigMax[i] = math.Max(c.VsigMax[i], e.scratch.VsigMax[i])
	}
	floats.Add(c.Grav[:], e.scratch.Grav[:])

	c.Pending = -1
	c.Owner = int32(e.rank)
	e.pending[slot] = pendingCell{}
	e.free = append(e.free, slot)
	e.states[c.CellID] = Resolved

	return c, nil
}

// send stamps the envelope and ships a cell record. Replies and forwarded
// requests preserve the generation of the originating request, so a reply
// that outlives its force pass is recognizably stale at the origin.
func (e *Exchanger) send(kind, gen, hops, origin, to int, c *cell.Buffer) error {
	order := lib.SystemByteOrder()
	order.PutUint32(e.msgBuf[0:], uint32(kind))
	order.PutUint32(e.msgBuf[4:], uint32(gen))
	order.PutUint32(e.msgBuf[8:], uint32(hops))
	order.PutUint32(e.msgBuf[12:], uint32(origin))

	wire.MarshalInto(e.layout, c, e.msgBuf[headerSize:])
	return e.tr.Send(to, e.msgBuf)
}

func (e *Exchanger) splitHeader(msg []byte) (kind, gen, hops, origin int, err error) {
	if len(msg) != headerSize+int(e.layout.Extent) {
		return 0, 0, 0, 0, fmt.Errorf(
			"%w: the message holds %d bytes, but a cell message is %d bytes",
			wire.ErrLayoutMismatch, len(msg), headerSize+int(e.layout.Extent),
		)
	}

	order := lib.SystemByteOrder()
	kind = int(order.Uint32(msg[0:]))
	gen = int(order.Uint32(msg[4:]))
	hops = int(order.Uint32(msg[8:]))
	origin = int(order.Uint32(msg[12:]))
	return kind, gen, hops, origin, nil
}
