package engine

import (
	"sync"

	"corebrowser/pkg/dom"
)

// DirtyState is one node's position in spec.md §4.6's reflow state
// machine:
//
//	Clean -> (style/structure change) -> StyleDirty | StructureDirty
//	StyleDirty -> (geometry-affecting property) -> GeometryDirty
//	StyleDirty -> (pure-paint property)         -> PaintDirty
//	StructureDirty | GeometryDirty -> (layout pass) -> Clean, propagating
//	    GeometryDirty to ancestors
//	PaintDirty -> (display-list rebuild) -> Clean
type DirtyState int

const (
	Clean DirtyState = iota
	StyleDirty
	StructureDirty
	GeometryDirty
	PaintDirty
)

// dirtyTracker is the engine's scheduling hint layer on top of the query
// substrate's own (always-correct) invalidation: it records which nodes
// changed since the last reflow so Reflow can decide what's safe to lay
// out in parallel, without needing to diff the whole tree. It has no
// teacher equivalent — the teacher repaints the whole canvas on every
// frame — so its shape follows spec.md §4.6's state diagram directly
// rather than any one retrieval-pack file.
type dirtyTracker struct {
	mu     sync.Mutex
	states map[dom.NodeKey]DirtyState
}

func newDirtyTracker() *dirtyTracker {
	return &dirtyTracker{states: make(map[dom.NodeKey]DirtyState)}
}

func (t *dirtyTracker) get(key dom.NodeKey) DirtyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[key]
}

// markStructureDirty records a structural change at key (insert/remove of
// a child, a moved node). Per the state diagram this is reachable directly
// from Clean and always wins over a merely style-dirty node, since a
// structural change implies the subtree's boxes must be rebuilt, not just
// restyled.
func (t *dirtyTracker) markStructureDirty(key dom.NodeKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[key] = StructureDirty
}

// markStyleDirty records that key's computed style may have changed
// without its DOM structure changing (an attribute/class/inline-style
// mutation). A node already StructureDirty stays StructureDirty — that
// state already implies a full rebuild, a strictly stronger condition.
func (t *dirtyTracker) markStyleDirty(key dom.NodeKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[key] == StructureDirty {
		return
	}
	t.states[key] = StyleDirty
}

// refineStyleDirty resolves a StyleDirty node into GeometryDirty (the
// changed property affects box sizing/position: width, margin, display,
// ...) or PaintDirty (it's paint-only: color, background-color, ...),
// per spec.md §4.6. A caller that doesn't track which specific properties
// changed can skip this and markStructureDirty/markStyleDirty's callers
// will simply treat every style change as geometry-affecting — the
// conservative, always-correct choice — until this is called to narrow it.
func (t *dirtyTracker) refineStyleDirty(key dom.NodeKey, geometryAffecting bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[key] != StyleDirty {
		return
	}
	if geometryAffecting {
		t.states[key] = GeometryDirty
	} else {
		t.states[key] = PaintDirty
	}
}

func (t *dirtyTracker) markClean(key dom.NodeKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, key)
}

// drainIndependentRoots returns every currently dirty node whose state
// demands a layout pass (StructureDirty, GeometryDirty, or a StyleDirty
// node not yet narrowed to PaintDirty — treated conservatively as
// geometry-affecting) and clears the tracker. It does not attempt to
// filter out a node whose ancestor is also in the returned set; Reflow's
// caller is expected to pass genuinely independent subtrees (in practice,
// distinct top-level children of the document root) since this tracker has
// no view of the DOM tree shape itself — another scoped simplification,
// acceptable because laying out an ancestor and a descendant concurrently
// only wastes work (the descendant's result gets overwritten when the
// ancestor's pass reaches it), it never produces a wrong answer, since the
// query substrate's own dependency tracking is what's authoritative.
func (t *dirtyTracker) drainIndependentRoots() []dom.NodeKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]dom.NodeKey, 0, len(t.states))
	for key, st := range t.states {
		if st == PaintDirty {
			continue
		}
		out = append(out, key)
	}
	t.states = make(map[dom.NodeKey]DirtyState)
	return out
}
