/*package stack implements the per-pass work stack of cell records. A Stack
owns its cells: Push copies the record in and Pop copies it back out, so the
producer can keep reusing one scratch Buffer. A Stack is created for one
force-evaluation pass, tagged with that pass's generation number, and thrown
away when the pass completes.
*/
package stack

import (
	"errors"

	"github.com/sphgrav/treeforce/lib/cell"
)

// ErrEmpty is returned by Pop and Peek on an empty stack. It means the
// producer/consumer protocol was violated, not that work ran out, so
// callers treat it as fatal.
var ErrEmpty = errors.New("pop from an empty work stack")

// Stack is a growable last-in-first-out collection of cell records.
type Stack struct {
	cells  []cell.Buffer
	n      int
	number int
}

// New creates a Stack for the force pass with the given generation number.
// initCap cells are allocated up front; the stack grows past that as needed
// and never shrinks.
func New(number, initCap int) *Stack {
	if initCap < 1 {
		initCap = 1
	}
	return &Stack{cells: make([]cell.Buffer, initCap), number: number}
}

// Number returns the generation tag of the force pass this stack belongs
// to. Completions carrying a different generation are stale and must not be
// applied to this stack's cells.
func (s *Stack) Number() int { return s.number }

// Len returns the number of cells currently queued.
func (s *Stack) Len() int { return s.n }

// Cap returns the size of the backing allocation.
func (s *Stack) Cap() int { return len(s.cells) }

// Push appends a copy of c, growing the backing storage if it is full.
func (s *Stack) Push(c *cell.Buffer) {
	if s.n == len(s.cells) {
		// Doubling keeps the amortized cost of a push constant.
		s.cells = append(s.cells, make([]cell.Buffer, len(s.cells))...)
	}

	s.cells[s.n] = *c
	s.n++
}

// Pop removes the most recently pushed cell and copies it into out. It
// fails with ErrEmpty if no cells are queued.
func (s *Stack) Pop(out *cell.Buffer) error {
	if s.n == 0 {
		return ErrEmpty
	}

	s.n--
	*out = s.cells[s.n]
	return nil
}

// Peek returns a pointer to the most recently pushed cell so the producer
// can accumulate into it in place. The pointer is invalidated by the next
// Push or Pop.
func (s *Stack) Peek() (*cell.Buffer, error) {
	if s.n == 0 {
		return nil, ErrEmpty
	}
	return &s.cells[s.n-1], nil
}
