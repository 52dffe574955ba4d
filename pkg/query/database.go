package query

import (
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const shardCount = 64

type entry struct {
	value        any
	isInput      bool
	dependencies []Key
	computedAt   Revision
	verifiedAt   Revision

	// revalidate re-runs this entry's own Query call (using a throwaway
	// child context) so that a dependency which is itself stale gets a
	// chance to re-verify (and, if needed, recompute) before its
	// computedAt is trusted by a dependent's own verification step. Nil
	// for input entries, which never need it.
	revalidate func(*Context) (Revision, error)
}

type shard struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

// Database is the concurrent, sharded store behind every query. Writes
// (set_input / invalidate_input / cache inserts) take the per-shard lock;
// reads of a settled entry take the shard's read lock. A query already
// `Computing` on another goroutine is deduplicated via singleflight so a
// second caller blocks on the first's result instead of redoing the work.
type Database struct {
	shards   [shardCount]*shard
	revision atomic.Uint64
	group    singleflight.Group
	log      *zap.Logger
}

// NewDatabase constructs an empty database at revision 0. Pass nil for log
// to get a no-op logger.
func NewDatabase(log *zap.Logger) *Database {
	if log == nil {
		log = zap.NewNop()
	}
	db := &Database{log: log}
	for i := range db.shards {
		db.shards[i] = &shard{entries: make(map[Key]*entry)}
	}
	return db
}

func (db *Database) shardFor(k Key) *shard {
	h := fnv32(k.String())
	return db.shards[h%shardCount]
}

func fnv32(s string) uint32 {
	const prime = 16777619
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

// CurrentRevision returns the database's current global revision.
func (db *Database) CurrentRevision() Revision {
	return Revision(db.revision.Load())
}

func (db *Database) bump() Revision {
	return Revision(db.revision.Add(1))
}

// SetInput stores a new value for an input query at key, bumping the global
// revision and recording the change revision for this (query, key) pair.
// Overwrites silently; there is no failure mode.
func SetInput[T any](db *Database, queryName string, key any, value T) {
	k := NewKey(queryName, key)
	rev := db.bump()
	sh := db.shardFor(k)
	sh.mu.Lock()
	sh.entries[k] = &entry{value: value, isInput: true, computedAt: rev, verifiedAt: rev}
	sh.mu.Unlock()
	db.log.Debug("set_input", zap.String("key", k.String()), zap.Uint64("revision", uint64(rev)))
}

// InvalidateInput removes the input at key and bumps the revision, so any
// dependent derived query sees it as changed on the next query() call.
func InvalidateInput(db *Database, queryName string, key any) {
	k := NewKey(queryName, key)
	db.bump()
	sh := db.shardFor(k)
	sh.mu.Lock()
	delete(sh.entries, k)
	sh.mu.Unlock()
	db.log.Debug("invalidate_input", zap.String("key", k.String()))
}

// GetInput reads an input query's current value without participating in
// dependency recording. Used internally by Query when a dependency turns
// out to be an input rather than a derived query.
func GetInput[T any](db *Database, queryName string, key any) (T, bool) {
	var zero T
	k := NewKey(queryName, key)
	sh := db.shardFor(k)
	sh.mu.RLock()
	e, ok := sh.entries[k]
	sh.mu.RUnlock()
	if !ok {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// GetInputRecorded reads an input query's value and records it as a
// dependency of whatever query is executing against ctx. This is the
// normal way a derived query reads DOM/stylesheet/viewport inputs; GetInput
// itself is for callers (like tests, or Query's own internals) that
// already know they're not inside a dependency-tracked computation.
func GetInputRecorded[T any](ctx *Context, queryName string, key any) (T, bool) {
	v, ok := GetInput[T](ctx.db, queryName, key)
	if ok {
		ctx.record(NewKey(queryName, key))
	}
	return v, ok
}

// Context is the per-top-level-call execution context. It carries the
// dependency set the currently executing query accumulates, and the stack
// of in-progress keys used for cycle detection. A Context must not be
// shared across goroutines; fork gives a derived query its own
// dependency-recording scope while sharing the cycle-detection stack (so
// parallel fan-out via errgroup still catches cycles that span goroutines
// feeding the same top-level call).
type Context struct {
	db   *Database
	deps *[]Key

	mu      *sync.Mutex
	stack   *[]Key
	inStack *map[Key]bool
}

// NewContext opens a scoped dependency-recording context for one top-level
// query call. The dependency set is guaranteed released (even across a
// panic) by always constructing a fresh Context per top-level call — there
// is no global/thread-local state to leak.
func NewContext(db *Database) *Context {
	deps := make([]Key, 0, 8)
	stack := make([]Key, 0, 8)
	inStack := make(map[Key]bool, 8)
	return &Context{db: db, deps: &deps, mu: &sync.Mutex{}, stack: &stack, inStack: &inStack}
}

// DB returns the underlying database.
func (c *Context) DB() *Database { return c.db }

// Dependencies returns the keys read so far in this context's scope.
func (c *Context) Dependencies() []Key {
	return append([]Key(nil), (*c.deps)...)
}

// fork returns a child context for a nested query, with its own dependency
// set but sharing cycle-detection state.
func (c *Context) fork() *Context {
	deps := make([]Key, 0, 4)
	return &Context{db: c.db, deps: &deps, mu: c.mu, stack: c.stack, inStack: c.inStack}
}

func (c *Context) record(k Key) {
	*c.deps = append(*c.deps, k)
}

func (c *Context) pushStack(k Key) (*CycleError, func()) {
	c.mu.Lock()
	if (*c.inStack)[k] {
		path := append(append([]Key(nil), (*c.stack)...), k)
		c.mu.Unlock()
		return &CycleError{Path: path}, func() {}
	}
	(*c.inStack)[k] = true
	*c.stack = append(*c.stack, k)
	c.mu.Unlock()
	return nil, func() {
		c.mu.Lock()
		*c.stack = (*c.stack)[:len(*c.stack)-1]
		delete(*c.inStack, k)
		c.mu.Unlock()
	}
}

// Equatable lets a query's value type opt into a cheap early-cutoff
// comparison instead of reflect.DeepEqual.
type Equatable interface {
	Equal(other any) bool
}

func valuesEqual(a, b any) bool {
	if ea, ok := a.(Equatable); ok {
		return ea.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}

// Query executes the four-step contract from spec.md §4.1:
//  1. no entry -> execute, record dependencies, store, return.
//  2. entry verified at current revision -> return cached.
//  3. entry's dependencies all unchanged since verified_at -> mark verified, return cached (early cutoff).
//  4. otherwise re-execute, replace, propagate new computed_at.
//
// compute is called with a forked child Context so its own dependency
// reads don't leak into the caller's set; whatever compute reads is
// recorded as this query's dependency list.
func Query[T any](ctx *Context, queryName string, key any, compute func(*Context) (T, error)) (T, error) {
	var zero T
	k := NewKey(queryName, key)
	db := ctx.db

	cycleErr, pop := ctx.pushStack(k)
	if cycleErr != nil {
		return zero, cycleErr
	}
	defer pop()

	sh := db.shardFor(k)
	current := db.CurrentRevision()

	sh.mu.RLock()
	e, ok := sh.entries[k]
	sh.mu.RUnlock()

	if ok && e.isInput {
		ctx.record(k)
		v, _ := e.value.(T)
		return v, nil
	}

	if ok {
		if e.verifiedAt == current {
			ctx.record(k)
			v, _ := e.value.(T)
			return v, nil
		}
		if db.dependenciesUnchanged(ctx, e.dependencies, e.verifiedAt) {
			sh.mu.Lock()
			e.verifiedAt = current
			sh.mu.Unlock()
			ctx.record(k)
			v, _ := e.value.(T)
			return v, nil
		}
	}

	// Recompute, deduplicating concurrent callers of the identical key.
	// A panic inside compute unwinds through this closure (no entry is
	// written below it), then re-raises once singleflight.Do returns.
	type result struct {
		value T
		deps  []Key
		err   error
	}
	raw, err, _ := db.group.Do(k.String(), func() (ret any, rerr error) {
		child := ctx.fork()
		var panicked any
		func() {
			defer func() {
				if p := recover(); p != nil {
					panicked = p
				}
			}()
			v, cerr := compute(child)
			ret = result{value: v, deps: child.Dependencies(), err: cerr}
		}()
		if panicked != nil {
			panic(panicked)
		}
		return ret, nil
	})
	if err != nil {
		return zero, err
	}
	res := raw.(result)
	if res.err != nil {
		return zero, res.err
	}

	newEntry := &entry{value: res.value, dependencies: res.deps, computedAt: db.CurrentRevision(), verifiedAt: db.CurrentRevision()}
	if ok && valuesEqual(e.value, res.value) {
		// Early cutoff for dependents: keep the older computed_at so anything
		// that depended on the previous value sees "unchanged".
		newEntry.computedAt = e.computedAt
	}
	newEntry.revalidate = func(c *Context) (Revision, error) {
		_, rerr := Query(c, queryName, key, compute)
		if rerr != nil {
			return 0, rerr
		}
		sh2 := db.shardFor(k)
		sh2.mu.RLock()
		e2 := sh2.entries[k]
		sh2.mu.RUnlock()
		return e2.computedAt, nil
	}
	sh.mu.Lock()
	sh.entries[k] = newEntry
	sh.mu.Unlock()

	ctx.record(k)
	return res.value, nil
}

// dependenciesUnchanged implements the walk described in spec.md §4.1 step 3:
// for each dependency, recursively re-verify it (which may itself recompute,
// bottom-up) and compare the resulting computed_at against this entry's
// verified_at. Inputs are compared directly since SetInput already stamps
// computed_at on every write.
func (db *Database) dependenciesUnchanged(ctx *Context, deps []Key, verifiedAt Revision) bool {
	for _, d := range deps {
		sh := db.shardFor(d)
		sh.mu.RLock()
		de, ok := sh.entries[d]
		sh.mu.RUnlock()
		if !ok {
			// Dependency was invalidated/removed entirely.
			return false
		}
		if de.isInput {
			if de.computedAt > verifiedAt {
				return false
			}
			continue
		}
		if de.revalidate == nil {
			if de.computedAt > verifiedAt {
				return false
			}
			continue
		}
		child := ctx.fork()
		computedAt, err := de.revalidate(child)
		if err != nil || computedAt > verifiedAt {
			return false
		}
	}
	return true
}
