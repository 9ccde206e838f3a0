package heap

import (
	"testing"
)

func TestNativeMemory_ReadWrite(t *testing.T) {
	mem := NewNativeMemory(128)

	if err := mem.WriteU32(8, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	v, err := mem.ReadU32(8)
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	if v != 0xdeadbeef {
		t.Fatalf("expected 0xdeadbeef, got %#x", v)
	}

	if err := mem.WriteU64(16, 0x0102030405060708); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	u, err := mem.ReadU64(16)
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}
	if u != 0x0102030405060708 {
		t.Fatalf("expected u64 round trip, got %#x", u)
	}

	// Little-endian byte order.
	b, err := mem.ReadU8(16)
	if err != nil {
		t.Fatalf("ReadU8: %v", err)
	}
	if b != 0x08 {
		t.Fatalf("expected LE low byte 0x08, got %#x", b)
	}
}

func TestNativeMemory_Bounds(t *testing.T) {
	mem := NewNativeMemory(16)

	if _, err := mem.ReadU32(14); err == nil {
		t.Fatal("read past end should fail")
	}
	if err := mem.WriteU64(12, 1); err == nil {
		t.Fatal("write past end should fail")
	}
	if _, err := mem.Read(0, 17); err == nil {
		t.Fatal("oversized read should fail")
	}
}

func TestNativeMemory_Grow(t *testing.T) {
	mem := NewNativeMemory(8)
	if err := mem.Grow(24); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if mem.Size() != 32 {
		t.Fatalf("expected size 32, got %d", mem.Size())
	}
	if err := mem.WriteU32(28, 7); err != nil {
		t.Fatalf("write to grown region: %v", err)
	}
}

func TestHeader_Accessors(t *testing.T) {
	mem := NewNativeMemory(64)
	ref := uint32(16)

	if err := SetRefcount(mem, ref, 3); err != nil {
		t.Fatalf("SetRefcount: %v", err)
	}
	if err := SetTypeID(mem, ref, 42); err != nil {
		t.Fatalf("SetTypeID: %v", err)
	}

	rc, err := Refcount(mem, ref)
	if err != nil || rc != 3 {
		t.Fatalf("Refcount = %d, %v", rc, err)
	}
	tid, err := TypeID(mem, ref)
	if err != nil || tid != 42 {
		t.Fatalf("TypeID = %d, %v", tid, err)
	}

	// Refcount and type id occupy distinct words.
	raw, err := mem.Read(ref, HeaderSize)
	if err != nil {
		t.Fatalf("Read header: %v", err)
	}
	if raw[0] != 3 || raw[4] != 42 {
		t.Fatalf("unexpected header bytes: %v", raw)
	}
}

func TestArena_AllocFree(t *testing.T) {
	mem := NewNativeMemory(4 * 1024)
	a := NewArena(mem)

	p1, err := a.Alloc(24, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p1 == 0 {
		t.Fatal("allocator must never return the null address")
	}
	if p1%8 != 0 {
		t.Fatalf("allocation not 8-aligned: %d", p1)
	}

	p2, err := a.Alloc(24, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p2 == p1 {
		t.Fatal("distinct allocations must not alias")
	}

	// Freed blocks are reused.
	a.Free(p1)
	p3, err := a.Alloc(24, 8)
	if err != nil {
		t.Fatalf("Alloc after Free: %v", err)
	}
	if p3 != p1 {
		t.Fatalf("expected freed block %d to be reused, got %d", p1, p3)
	}
}

func TestArena_ZeroesAllocations(t *testing.T) {
	mem := NewNativeMemory(1024)
	a := NewArena(mem)

	p, err := a.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := mem.WriteU64(p, ^uint64(0)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	a.Free(p)

	p2, err := a.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if p2 != p {
		t.Fatalf("expected reuse of %d, got %d", p, p2)
	}
	v, err := mem.ReadU64(p2)
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}
	if v != 0 {
		t.Fatalf("reused allocation not zeroed: %#x", v)
	}
}

func TestArena_GrowsBackend(t *testing.T) {
	mem := NewNativeMemory(64)
	a := NewArena(mem)

	p, err := a.Alloc(4096, 8)
	if err != nil {
		t.Fatalf("Alloc beyond initial size: %v", err)
	}
	if err := mem.WriteU8(p+4095, 1); err != nil {
		t.Fatalf("write at end of grown allocation: %v", err)
	}
}

func TestArena_BadAlign(t *testing.T) {
	a := NewArena(NewNativeMemory(64))
	if _, err := a.Alloc(8, 3); err == nil {
		t.Fatal("non power-of-two alignment should fail")
	}
	if _, err := a.Alloc(8, 16); err == nil {
		t.Fatal("alignment above 8 should fail")
	}
}

func BenchmarkArena_AllocFree(b *testing.B) {
	mem := NewNativeMemory(1 << 20)
	a := NewArena(mem)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p, err := a.Alloc(32, 8)
		if err != nil {
			b.Fatal(err)
		}
		a.Free(p)
	}
}
