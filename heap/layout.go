package heap

import (
	interpbridge "github.com/wippyai/interp-bridge"
)

// Object header layout. The leading fields are exactly (refcount, type id),
// in that order and width; everything above the header is per-type payload.
const (
	RefcountOffset = 0
	TypeIDOffset   = 4
	HeaderSize     = 8
)

// Backend is a growable linear memory a Heap can allocate from.
type Backend interface {
	interpbridge.Memory
	interpbridge.MemorySizer

	// Grow extends the memory by at least delta bytes.
	Grow(delta uint32) error

	// Close releases backend resources.
	Close() error
}

// Refcount reads the reference count of the object at ref.
func Refcount(mem interpbridge.Memory, ref uint32) (uint32, error) {
	return mem.ReadU32(ref + RefcountOffset)
}

// SetRefcount writes the reference count of the object at ref.
func SetRefcount(mem interpbridge.Memory, ref uint32, n uint32) error {
	return mem.WriteU32(ref+RefcountOffset, n)
}

// TypeID reads the type id of the object at ref.
func TypeID(mem interpbridge.Memory, ref uint32) (uint32, error) {
	return mem.ReadU32(ref + TypeIDOffset)
}

// SetTypeID writes the type id of the object at ref.
func SetTypeID(mem interpbridge.Memory, ref uint32, id uint32) error {
	return mem.WriteU32(ref+TypeIDOffset, id)
}

func alignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}
