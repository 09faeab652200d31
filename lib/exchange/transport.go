package exchange

/* transport.go defines the rank-to-rank message transport and the loopback
implementation used by tests, the selftest mode, and single-node runs. */

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Recv once the transport is closed and drained.
var ErrClosed = errors.New("transport closed")

// Transport moves opaque message bytes between ranks. Send may be called
// with a buffer that the caller immediately reuses, so implementations must
// copy the body if they hold on to it. Recv blocks until a message for the
// local rank arrives.
type Transport interface {
	Send(rank int, msg []byte) error
	Recv() (rank int, msg []byte, err error)
	Close() error
}

type message struct {
	src  int
	body []byte
}

// Loopback is a channel-backed Transport connecting the simulated ranks of
// a single process. Every rank of the group shares the same inbox table.
type Loopback struct {
	rank    int
	inboxes []chan message
}

// NewLoopback creates a connected group of n loopback transports, one per
// rank. queue bounds the number of undelivered messages per rank.
func NewLoopback(n, queue int) []*Loopback {
	inboxes := make([]chan message, n)
	for i := range inboxes {
		inboxes[i] = make(chan message, queue)
	}

	group := make([]*Loopback, n)
	for i := range group {
		group[i] = &Loopback{rank: i, inboxes: inboxes}
	}
	return group
}

// Rank returns the local rank this endpoint belongs to.
func (lo *Loopback) Rank() int { return lo.rank }

func (lo *Loopback) Send(rank int, msg []byte) error {
	if rank < 0 || rank >= len(lo.inboxes) {
		return fmt.Errorf("send to rank %d, but the group only has ranks "+
			"[0, %d)", rank, len(lo.inboxes))
	}

	body := make([]byte, len(msg))
	copy(body, msg)
	lo.inboxes[rank] <- message{lo.rank, body}
	return nil
}

func (lo *Loopback) Recv() (int, []byte, error) {
	msg, ok := <-lo.inboxes[lo.rank]
	if !ok {
		return -1, nil, ErrClosed
	}
	return msg.src, msg.body, nil
}

// Close closes the local inbox. The protocol quiesces before ranks close:
// a Send racing a Close is a caller bug, not a recoverable condition.
func (lo *Loopback) Close() error {
	close(lo.inboxes[lo.rank])
	return nil
}
