package cell

import (
	"fmt"

	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
)

// Borrow flag states. Anything strictly between Unborrowed and Exclusive
// is a shared reader count.
const (
	Unborrowed uint32 = 0
	Exclusive  uint32 = 0xFFFFFFFF

	maxShared = Exclusive - 1
)

// FrozenFlag marks a cell whose layout has no borrow flag word.
const FrozenFlag int32 = -1

// Cell is a view of one embedding layer of an extension instance: where
// its borrow flag sits (if any) and where its rep word sits. Cells are
// cheap values; construct them on demand from the instance layout.
type Cell struct {
	rt       *interp.Runtime
	ref      interp.Ref
	typeName string
	typeID   uint32
	flagOff  int32
	repOff   uint32
}

// New builds a cell view. flagOff is the byte offset of the borrow flag
// from the start of the heap object, or FrozenFlag when the layout carries
// none. repOff is the byte offset of this layer's rep word.
func New(rt *interp.Runtime, ref interp.Ref, typeName string, typeID uint32, flagOff int32, repOff uint32) Cell {
	return Cell{rt: rt, ref: ref, typeName: typeName, typeID: typeID, flagOff: flagOff, repOff: repOff}
}

// Frozen reports whether the cell's layout has no borrow flag.
func (c Cell) Frozen() bool { return c.flagOff < 0 }

// Ref returns the heap object this cell belongs to.
func (c Cell) Ref() interp.Ref { return c.ref }

func (c Cell) readWord(off uint32) uint32 {
	v, err := c.rt.Mem().ReadU32(uint32(c.ref) + off)
	if err != nil {
		panic(fmt.Sprintf("cell: heap read at ref %d offset %d: %v", c.ref, off, err))
	}
	return v
}

func (c Cell) writeWord(off, v uint32) {
	if err := c.rt.Mem().WriteU32(uint32(c.ref)+off, v); err != nil {
		panic(fmt.Sprintf("cell: heap write at ref %d offset %d: %v", c.ref, off, err))
	}
}

func (c Cell) flag() uint32 { return c.readWord(uint32(c.flagOff)) }

func (c Cell) rep() uint32 { return c.readWord(c.repOff) }

// value fetches the embedded Go value, failing if the collector cleared it.
func (c Cell) value() (any, error) {
	rep := c.rep()
	if rep == 0 {
		return nil, errors.Cleared(errors.PhaseBorrow, c.typeName)
	}
	v, ok := c.rt.Store().GetTyped(rep, c.typeID)
	if !ok {
		return nil, errors.Cleared(errors.PhaseBorrow, c.typeName)
	}
	return v, nil
}

// TryBorrow takes a shared borrow. It fails while a write borrow is out,
// when the shared count would saturate, or when the value was cleared.
// Frozen cells always grant shared access and track no count.
func (c Cell) TryBorrow() (*Guard, error) {
	v, err := c.value()
	if err != nil {
		return nil, err
	}
	if c.Frozen() {
		return &Guard{value: v}, nil
	}
	f := c.flag()
	if f == Exclusive {
		return nil, errors.BorrowConflict(errors.PhaseBorrow, c.typeName)
	}
	if f == maxShared {
		return nil, errors.BorrowConflict(errors.PhaseBorrow, c.typeName)
	}
	c.writeWord(uint32(c.flagOff), f+1)
	return &Guard{cell: c, counted: true, value: v}, nil
}

// TryBorrowMut takes the write borrow. It fails while any borrow is out,
// on frozen cells, and on cleared values.
func (c Cell) TryBorrowMut() (*GuardMut, error) {
	v, err := c.value()
	if err != nil {
		return nil, err
	}
	if c.Frozen() {
		return nil, errors.Frozen(errors.PhaseBorrow, c.typeName)
	}
	if c.flag() != Unborrowed {
		return nil, errors.BorrowMutConflict(errors.PhaseBorrow, c.typeName)
	}
	c.writeWord(uint32(c.flagOff), Exclusive)
	return &GuardMut{cell: c, held: true, value: v}, nil
}

// Borrow is TryBorrow for callers that treat a conflict as a logic bug.
func (c Cell) Borrow() *Guard {
	g, err := c.TryBorrow()
	if err != nil {
		panic(err)
	}
	return g
}

// BorrowMut is TryBorrowMut for callers that treat a conflict as a logic bug.
func (c Cell) BorrowMut() *GuardMut {
	g, err := c.TryBorrowMut()
	if err != nil {
		panic(err)
	}
	return g
}

// Guard is an outstanding shared borrow. Release it when done; releasing
// twice is harmless.
type Guard struct {
	cell     Cell
	counted  bool
	released bool
	value    any
}

// Value returns the borrowed Go value.
func (g *Guard) Value() any { return g.value }

// Release returns the borrow. Requires the runtime lock, like taking it did.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	if !g.counted {
		return
	}
	f := g.cell.flag()
	if f == Unborrowed || f == Exclusive {
		panic(fmt.Sprintf("cell: shared release of %s found flag %#x", g.cell.typeName, f))
	}
	g.cell.writeWord(uint32(g.cell.flagOff), f-1)
}

// GuardMut is the outstanding write borrow.
type GuardMut struct {
	cell     Cell
	held     bool
	released bool
	value    any
}

// Value returns the borrowed Go value.
func (g *GuardMut) Value() any { return g.value }

// Release returns the borrow. Releasing twice is harmless.
func (g *GuardMut) Release() {
	if g.released || !g.held {
		return
	}
	g.released = true
	if f := g.cell.flag(); f != Exclusive {
		panic(fmt.Sprintf("cell: exclusive release of %s found flag %#x", g.cell.typeName, f))
	}
	g.cell.writeWord(uint32(g.cell.flagOff), Unborrowed)
}
