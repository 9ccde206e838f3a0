package heap

import (
	"fmt"
)

// Block layout: [size u32][reserved u32][data ...]. Data starts 8-aligned
// so u64 payload fields inside object allocations stay naturally aligned.
const blockHeader = 8

// Arena is a first-fit free-list allocator over a Backend. It is not
// goroutine-safe; all allocation happens under the runtime's global lock.
type Arena struct {
	mem  Backend
	next uint32
	free []freeBlock
}

type freeBlock struct {
	ptr  uint32 // data pointer, not block start
	size uint32 // usable data size
}

// NewArena creates an allocator over mem. The first 8 bytes of the memory
// are reserved so that 0 can serve as the null reference.
func NewArena(mem Backend) *Arena {
	return &Arena{mem: mem, next: blockHeader}
}

// Alloc returns the address of a zeroed region of at least size bytes.
// align must be a power of two no greater than 8.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	if align == 0 || align > 8 || align&(align-1) != 0 {
		return 0, fmt.Errorf("unsupported alignment %d", align)
	}
	if size == 0 {
		size = 1
	}
	need := alignUp(size, 8)

	// Exact-fit or split from the free list first.
	for i, fb := range a.free {
		if fb.size < need {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if fb.size > need+blockHeader+8 {
			// Split the tail into its own block.
			tail := fb.ptr + need + blockHeader
			if err := a.mem.WriteU32(tail-blockHeader, fb.size-need-blockHeader); err != nil {
				return 0, err
			}
			a.free = append(a.free, freeBlock{ptr: tail, size: fb.size - need - blockHeader})
			if err := a.mem.WriteU32(fb.ptr-blockHeader, need); err != nil {
				return 0, err
			}
		}
		if err := a.zero(fb.ptr, need); err != nil {
			return 0, err
		}
		return fb.ptr, nil
	}

	// Bump allocate, growing the backend as needed.
	ptr := a.next + blockHeader
	end := ptr + need
	if end > a.mem.Size() {
		delta := end - a.mem.Size()
		if delta < 64*1024 {
			delta = 64 * 1024
		}
		if err := a.mem.Grow(delta); err != nil {
			return 0, fmt.Errorf("heap grow failed: %w", err)
		}
	}
	if err := a.mem.WriteU32(a.next, need); err != nil {
		return 0, err
	}
	a.next = end
	if err := a.zero(ptr, need); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Free returns the block at ptr to the free list. ptr must have come from
// Alloc. Freeing 0 is a no-op.
func (a *Arena) Free(ptr uint32) {
	if ptr == 0 {
		return
	}
	size, err := a.mem.ReadU32(ptr - blockHeader)
	if err != nil {
		return
	}
	a.free = append(a.free, freeBlock{ptr: ptr, size: size})
}

// BlockSize reports the usable size of the allocation at ptr.
func (a *Arena) BlockSize(ptr uint32) (uint32, error) {
	return a.mem.ReadU32(ptr - blockHeader)
}

// FreeBlocks reports the current free-list length, for diagnostics.
func (a *Arena) FreeBlocks() int {
	return len(a.free)
}

func (a *Arena) zero(ptr, size uint32) error {
	return a.mem.Write(ptr, make([]byte, size))
}
