package interpbridge

// Memory is byte-addressed linear memory holding the runtime's object heap.
// Multi-byte values are little-endian. Address 0 is reserved and never
// handed out by an Allocator.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the heap in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator carves object allocations out of a Memory. Alloc returning an
// error maps to the runtime's out-of-memory exception at the call site;
// allocators never panic on exhaustion.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr uint32)
}
