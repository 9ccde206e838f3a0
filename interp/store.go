package interp

// Store holds the Go-side payloads of heap objects: strings, list and dict
// state, builtin closures, embedded extension values. Heap payloads address
// entries by a u32 rep word; rep 0 is reserved and always invalid.
//
// The store is not goroutine-safe on its own: all mutation happens under the
// runtime's global lock, and the collector runs with the world stopped.
type Store struct {
	entries  []storeEntry
	freeList []uint32
}

type storeEntry struct {
	value  any
	typeID uint32
	valid  bool
}

// NewStore creates an empty value store.
func NewStore() *Store {
	return &Store{
		entries:  make([]storeEntry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Put stores a value and returns its rep.
func (s *Store) Put(typeID uint32, value any) uint32 {
	e := storeEntry{
		typeID: typeID,
		value:  value,
		valid:  true,
	}

	if len(s.freeList) > 0 {
		rep := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		s.entries[rep-1] = e
		return rep
	}

	s.entries = append(s.entries, e)
	return uint32(len(s.entries))
}

// Get retrieves a value by rep.
func (s *Store) Get(rep uint32) (any, bool) {
	if rep == 0 || int(rep-1) >= len(s.entries) {
		return nil, false
	}
	e := s.entries[rep-1]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

// GetTyped retrieves a value only if it belongs to the expected type.
func (s *Store) GetTyped(rep uint32, typeID uint32) (any, bool) {
	if rep == 0 || int(rep-1) >= len(s.entries) {
		return nil, false
	}
	e := s.entries[rep-1]
	if !e.valid || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// TypeID returns the owning type id for a rep.
func (s *Store) TypeID(rep uint32) (uint32, bool) {
	if rep == 0 || int(rep-1) >= len(s.entries) {
		return 0, false
	}
	e := s.entries[rep-1]
	if !e.valid {
		return 0, false
	}
	return e.typeID, true
}

// Drop releases the entry at rep and returns its value.
func (s *Store) Drop(rep uint32) (any, bool) {
	if rep == 0 || int(rep-1) >= len(s.entries) {
		return nil, false
	}
	e := &s.entries[rep-1]
	if !e.valid {
		return nil, false
	}
	value := e.value
	e.valid = false
	e.value = nil
	s.freeList = append(s.freeList, rep)
	return value, true
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	count := 0
	for _, e := range s.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over live entries.
func (s *Store) Each(fn func(rep uint32, typeID uint32, value any) bool) {
	for i, e := range s.entries {
		if e.valid {
			if !fn(uint32(i+1), e.typeID, e.value) {
				break
			}
		}
	}
}

// Close drops every entry.
func (s *Store) Close() {
	s.entries = nil
	s.freeList = nil
}
