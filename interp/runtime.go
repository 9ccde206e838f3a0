package interp

import (
	"sync"
	"sync/atomic"

	"github.com/jtolds/gls"
	"go.uber.org/zap"

	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/heap"
)

// attachMgr tracks which goroutines currently hold which runtime's lock.
// This is what makes Run reentrant: a slot implementation called from the
// runtime can call back in without deadlocking.
var attachMgr = gls.NewContextManager()

// Config configures a runtime.
type Config struct {
	// Backend is the heap backing store. Defaults to a native in-process
	// buffer of InitialHeap bytes.
	Backend heap.Backend

	// InitialHeap is the native backend's initial size in bytes.
	// Defaults to 256 KiB.
	InitialHeap uint32
}

// Runtime is one embedded interpreter: heap, type table, value store,
// pending-exception state, and the global serialization lock.
type Runtime struct {
	mem   heap.Backend
	arena *heap.Arena
	store *Store

	types    []*TypeObject
	typeRefs map[*TypeObject]Ref

	tracked map[Ref]struct{}
	modules map[string]Ref

	pending   *Pending
	interrupt atomic.Bool
	finalized atomic.Bool

	mu sync.Mutex

	noneRef  Ref
	trueRef  Ref
	falseRef Ref

	// Built-in object types.
	TypeNone    *TypeObject
	TypeBool    *TypeObject
	TypeInt     *TypeObject
	TypeFloat   *TypeObject
	TypeStr     *TypeObject
	TypeList    *TypeObject
	TypeTuple   *TypeObject
	TypeDict    *TypeObject
	TypeBuiltin *TypeObject
	TypeType    *TypeObject

	// Exception types, all derived from ExcBase.
	ExcBase      *TypeObject
	ExcType      *TypeObject
	ExcValue     *TypeObject
	ExcAttribute *TypeObject
	ExcKey       *TypeObject
	ExcIndex     *TypeObject
	ExcRuntime   *TypeObject
	ExcMemory    *TypeObject
	ExcOverflow  *TypeObject
	ExcInterrupt *TypeObject
}

// New creates and initializes a runtime.
func New(cfg Config) (*Runtime, error) {
	mem := cfg.Backend
	if mem == nil {
		size := cfg.InitialHeap
		if size == 0 {
			size = 256 * 1024
		}
		mem = heap.NewNativeMemory(size)
	}

	r := &Runtime{
		mem:      mem,
		arena:    heap.NewArena(mem),
		store:    NewStore(),
		typeRefs: make(map[*TypeObject]Ref),
		tracked:  make(map[Ref]struct{}),
		modules:  make(map[string]Ref),
	}
	// Construction allocates objects, so it runs attached like any other
	// heap access.
	var err error
	r.Run(func() {
		if err = r.initTypes(); err != nil {
			return
		}
		err = r.initSingletons()
	})
	if err != nil {
		mem.Close()
		return nil, err
	}
	return r, nil
}

// Attached reports whether the calling goroutine currently holds this
// runtime's lock.
func (r *Runtime) Attached() bool {
	v, ok := attachMgr.GetValue(r)
	return ok && v == true
}

// Run executes f holding the global lock. If the calling goroutine is
// already attached, f runs immediately (reentrant acquisition). Attaching to
// a finalized runtime is a fatal invariant violation.
func (r *Runtime) Run(f func()) {
	if r.Attached() {
		f()
		return
	}
	if r.finalized.Load() {
		panic(errors.Finalized(errors.PhaseAttach, "attach to finalized runtime"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized.Load() {
		panic(errors.Finalized(errors.PhaseAttach, "attach to finalized runtime"))
	}
	attachMgr.SetValues(gls.Values{any(r): true}, f)
}

// Detach releases the global lock for the duration of f, letting other
// goroutines attach. The calling goroutine must be attached. Attachment is
// restored on all exit paths, including panics.
func (r *Runtime) Detach(f func()) {
	if !r.Attached() {
		panic(errors.Finalized(errors.PhaseAttach, "detach without attachment"))
	}
	r.mu.Unlock()
	defer r.mu.Lock()
	attachMgr.SetValues(gls.Values{any(r): false}, f)
}

func (r *Runtime) assertAttached() {
	if Debug && !r.Attached() {
		panic(errors.Finalized(errors.PhaseAttach, "runtime touched without attachment"))
	}
}

// Finalized reports whether Close has completed.
func (r *Runtime) Finalized() bool {
	return r.finalized.Load()
}

// Close collects remaining garbage, releases the value store and heap, and
// marks the runtime finalized. Attach attempts after Close panic.
func (r *Runtime) Close() error {
	if r.finalized.Load() {
		return nil
	}
	r.Run(func() {
		stats := r.Collect()
		if stats.Collected > 0 {
			Logger().Debug("final collection",
				zap.Int("collected", stats.Collected),
				zap.Int("tracked", stats.Tracked))
		}
		r.store.Close()
		r.finalized.Store(true)
	})
	return r.mem.Close()
}

// Mem exposes the heap for header-level access by the cell and extend
// packages.
func (r *Runtime) Mem() heap.Backend { return r.mem }

// Store exposes the value store for rep-level access by the cell and extend
// packages.
func (r *Runtime) Store() *Store { return r.store }

// HeapBytes reports the current heap size.
func (r *Runtime) HeapBytes() uint32 { return r.mem.Size() }

// RegisterModule exposes a namespace object (usually a dict built by the
// extend package) under name. Steals a reference to dict.
func (r *Runtime) RegisterModule(name string, dict Ref) error {
	r.assertAttached()
	if old, ok := r.modules[name]; ok {
		r.DecRef(old)
	}
	r.modules[name] = dict
	return nil
}

// Module returns a new reference to a registered module namespace.
func (r *Runtime) Module(name string) (Ref, bool) {
	r.assertAttached()
	d, ok := r.modules[name]
	if !ok {
		return 0, false
	}
	r.IncRef(d)
	return d, true
}

// ModuleNames lists registered modules.
func (r *Runtime) ModuleNames() []string {
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	return names
}

// Interrupt sets the advisory interrupt flag. Safe to call from any
// goroutine, attached or not.
func (r *Runtime) Interrupt() {
	r.interrupt.Store(true)
}

// CheckSignals polls the interrupt flag. If set, it is consumed, an
// Interrupted exception is raised, and -1 is returned. Long-running attached
// code should poll this periodically; nothing enforces it.
func (r *Runtime) CheckSignals() int {
	if r.interrupt.CompareAndSwap(true, false) {
		r.Raise(r.ExcInterrupt, "interrupted")
		return -1
	}
	return 0
}
