package heap

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const wasmPageSize = 64 * 1024

// WazeroMemory is a Backend whose storage is the exported linear memory of a
// synthesized WASM module instantiated with wazero. The module has no code;
// it exists to own the memory, keeping the object heap inside a sandboxed,
// guest-visible address space.
type WazeroMemory struct {
	runtime wazero.Runtime
	module  api.Module
	mem     api.Memory
	ctx     context.Context
}

// NewWazeroMemory instantiates the heap module with minPages of initial
// memory, growable up to maxPages.
func NewWazeroMemory(ctx context.Context, minPages, maxPages uint32) (*WazeroMemory, error) {
	if minPages == 0 {
		minPages = 1
	}
	if maxPages < minPages {
		maxPages = minPages
	}

	rt := wazero.NewRuntime(ctx)
	mod, err := rt.Instantiate(ctx, memoryModule(minPages, maxPages))
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate heap module: %w", err)
	}
	mem := mod.Memory()
	if mem == nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("heap module exports no memory")
	}
	return &WazeroMemory{runtime: rt, module: mod, mem: mem, ctx: ctx}, nil
}

// memoryModule synthesizes the smallest core module exporting a memory:
//
//	(module (memory (export "memory") min max))
func memoryModule(minPages, maxPages uint32) []byte {
	var b []byte
	b = append(b, 0x00, 0x61, 0x73, 0x6d) // magic
	b = append(b, 0x01, 0x00, 0x00, 0x00) // version 1

	// Memory section (id 5): one memory with min/max limits.
	var mem []byte
	mem = append(mem, 0x01)       // count
	mem = append(mem, 0x01)       // limits flag: max present
	mem = appendLEB(mem, minPages)
	mem = appendLEB(mem, maxPages)
	b = appendSection(b, 0x05, mem)

	// Export section (id 7): "memory" as memory index 0.
	var exp []byte
	exp = append(exp, 0x01) // count
	exp = appendLEB(exp, uint32(len("memory")))
	exp = append(exp, "memory"...)
	exp = append(exp, 0x02, 0x00) // kind memory, index 0
	b = appendSection(b, 0x07, exp)

	return b
}

func appendSection(b []byte, id byte, contents []byte) []byte {
	b = append(b, id)
	b = appendLEB(b, uint32(len(contents)))
	return append(b, contents...)
}

func appendLEB(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
			continue
		}
		return append(b, c)
	}
}

// Read reads bytes from guest memory. The returned slice is a copy.
func (m *WazeroMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("heap read out of bounds: offset=%d, length=%d", offset, length)
	}
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// Write writes bytes to guest memory.
func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("heap write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("heap read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("heap read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("heap read out of bounds: offset=%d", offset)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return fmt.Errorf("heap write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("heap write out of bounds: offset=%d", offset)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("heap write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the current size in bytes.
func (m *WazeroMemory) Size() uint32 {
	return m.mem.Size()
}

// Grow extends guest memory by at least delta bytes, rounded up to whole
// pages. Fails when the module's max limit is reached.
func (m *WazeroMemory) Grow(delta uint32) error {
	pages := (delta + wasmPageSize - 1) / wasmPageSize
	if _, ok := m.mem.Grow(pages); !ok {
		return fmt.Errorf("guest memory grow by %d pages refused (limit reached)", pages)
	}
	return nil
}

// Close tears down the wazero runtime owning the memory.
func (m *WazeroMemory) Close() error {
	return m.runtime.Close(m.ctx)
}
