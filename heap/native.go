package heap

import (
	"encoding/binary"
	"fmt"
)

// NativeMemory is an in-process growable byte buffer implementing Backend.
type NativeMemory struct {
	buf []byte
}

// NewNativeMemory creates a native backend with the given initial size.
func NewNativeMemory(size uint32) *NativeMemory {
	return &NativeMemory{buf: make([]byte, size)}
}

func (m *NativeMemory) check(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.buf)) {
		return fmt.Errorf("heap access out of bounds: offset=%d, length=%d, size=%d", offset, length, len(m.buf))
	}
	return nil
}

// Read reads length bytes starting at offset. The returned slice is a copy.
func (m *NativeMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:])
	return out, nil
}

// Write writes data at offset.
func (m *NativeMemory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *NativeMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *NativeMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *NativeMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset:]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *NativeMemory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *NativeMemory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *NativeMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:], value)
	return nil
}

// Size returns the current size in bytes.
func (m *NativeMemory) Size() uint32 {
	return uint32(len(m.buf))
}

// Grow extends the buffer by at least delta bytes.
func (m *NativeMemory) Grow(delta uint32) error {
	m.buf = append(m.buf, make([]byte, delta)...)
	return nil
}

// Close releases the buffer.
func (m *NativeMemory) Close() error {
	m.buf = nil
	return nil
}
