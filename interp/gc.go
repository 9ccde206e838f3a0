package interp

import (
	"go.uber.org/zap"
)

// CollectStats reports one collection pass.
type CollectStats struct {
	// Tracked is the number of objects in the collector registry before
	// the pass.
	Tracked int
	// Collected is the number of unreachable objects whose clear slot ran.
	Collected int
}

// Collect runs one cycle-collection pass. The caller must be attached; the
// pass has exclusive access to the whole object graph, which is why
// traverse and clear slots need no further synchronization.
//
// Algorithm: copy refcounts of tracked objects, subtract references held by
// other tracked objects (found via traverse), treat objects with remaining
// external references as roots, mark everything reachable from roots, then
// break the rest by running clear slots. Cleared objects are kept alive for
// the duration of the pass so a cascade cannot free an object mid-iteration.
func (r *Runtime) Collect() CollectStats {
	r.assertAttached()

	stats := CollectStats{Tracked: len(r.tracked)}
	if stats.Tracked == 0 {
		return stats
	}

	snapshot := make([]Ref, 0, len(r.tracked))
	for ref := range r.tracked {
		snapshot = append(snapshot, ref)
	}

	inCycle := make(map[Ref]int64, len(snapshot))
	for _, ref := range snapshot {
		inCycle[ref] = int64(r.Refcount(ref))
	}

	for _, ref := range snapshot {
		r.traverse(ref, func(child Ref) int {
			if _, ok := inCycle[child]; ok {
				inCycle[child]--
			}
			return 0
		})
	}

	// Mark from roots: anything still externally referenced keeps its
	// whole reachable subgraph.
	reachable := make(map[Ref]struct{}, len(snapshot))
	var queue []Ref
	for _, ref := range snapshot {
		if inCycle[ref] > 0 {
			reachable[ref] = struct{}{}
			queue = append(queue, ref)
		}
	}
	for len(queue) > 0 {
		ref := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		r.traverse(ref, func(child Ref) int {
			if _, tracked := inCycle[child]; !tracked {
				return 0
			}
			if _, seen := reachable[child]; seen {
				return 0
			}
			reachable[child] = struct{}{}
			queue = append(queue, child)
			return 0
		})
	}

	var unreachable []Ref
	for _, ref := range snapshot {
		if _, ok := reachable[ref]; !ok {
			unreachable = append(unreachable, ref)
		}
	}
	if len(unreachable) == 0 {
		return stats
	}

	// Hold a reference across the clear cascade so nothing is freed while
	// it may still be cleared or traversed.
	for _, ref := range unreachable {
		r.IncRef(ref)
	}
	for _, ref := range unreachable {
		t := r.TypeOf(ref)
		if t.Clear != nil {
			t.Clear(r, ref)
		}
	}
	for _, ref := range unreachable {
		r.DecRef(ref)
	}

	stats.Collected = len(unreachable)
	Logger().Debug("cycle collection",
		zap.Int("tracked", stats.Tracked),
		zap.Int("collected", stats.Collected))
	return stats
}

// TrackedCount reports the collector registry size.
func (r *Runtime) TrackedCount() int {
	return len(r.tracked)
}

func (r *Runtime) traverse(ref Ref, visit Visit) int {
	t := r.TypeOf(ref)
	if t.Traverse == nil {
		return 0
	}
	return t.Traverse(r, ref, visit)
}
