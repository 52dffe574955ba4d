package layout

import (
	"golang.org/x/sync/errgroup"

	"corebrowser/pkg/boxtree"
	"corebrowser/pkg/query"
)

// reflowScheduler bounds how many independent subtrees ComputeLayoutIncremental
// lays out at once to runtime.GOMAXPROCS(0), via a simple buffered-channel
// token limiter rather than golang.org/x/sync/semaphore, per SPEC_FULL.md §5.
// Grounded on the same principle as the teacher keeping per-layout transient
// state (ConstraintSpace, exclusion lists, margin struts) off the engine and
// on the call stack: a scheduler is throwaway, built fresh per top-level
// incremental-reflow call, never shared state on a long-lived type.
type reflowScheduler struct {
	tokens chan struct{}
}

func newReflowScheduler(maxParallel int) *reflowScheduler {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &reflowScheduler{tokens: make(chan struct{}, maxParallel)}
}

func (s *reflowScheduler) acquire() { s.tokens <- struct{}{} }
func (s *reflowScheduler) release() { <-s.tokens }

// DirtySubtree names one subtree ComputeLayoutIncremental should (re)lay
// out: its box-tree root, the origin it's positioned at within its parent's
// formatting context, and the constraint space it's entered with.
// ComputeLayoutIncremental returns subtrees[i]'s result at results[i].
type DirtySubtree struct {
	Tree       *boxtree.Node
	Origin     Point
	Constraint ConstraintSpace
	FontSizePx float64
	IsRoot     bool
	Viewport   Rect // the initial containing block, for position:fixed descendants
}

// ComputeLayoutIncremental lays out a set of dirty subtrees concurrently,
// bounded by maxParallel (pass runtime.GOMAXPROCS(0) in production; the
// caller — pkg/engine — is responsible for establishing that the subtrees
// are actually independent, e.g. siblings whose shared parent's own
// geometry didn't change, since nothing here re-validates that). LayoutBox
// reports no errors, so every goroutine returns nil and the returned error
// is always nil; inputs don't carry a context.Context of their own since
// box-tree layout performs no I/O or cancellation-aware work, so errgroup
// here only fans the calls out and waits for them.
func ComputeLayoutIncremental(ctx *query.Context, provider BaselineProvider, measurer Measurer, subtrees []DirtySubtree, maxParallel int) ([]LayoutResult, error) {
	if provider == nil {
		provider = DefaultProvider
	}
	results := make([]LayoutResult, len(subtrees))
	sched := newReflowScheduler(maxParallel)

	var g errgroup.Group
	for i, st := range subtrees {
		i, st := i, st
		g.Go(func() error {
			sched.acquire()
			defer sched.release()
			lc := &Ctx{Q: ctx, Provider: provider, Measurer: measurer, Viewport: st.Viewport}
			results[i] = LayoutBox(lc, st.Tree, st.Origin, st.Constraint, st.FontSizePx, st.IsRoot)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
