package query

import "testing"

func TestSetInputThenQueryRoundTrip(t *testing.T) {
	db := NewDatabase(nil)
	SetInput(db, "Name", "a", "alice")
	ctx := NewContext(db)
	v, _ := Query(ctx, "Upper", "a", func(c *Context) (string, error) {
		name, _ := GetInputRecorded[string](c, "Name", "a")
		return name + "!", nil
	})
	if v != "alice!" {
		t.Fatalf("expected alice!, got %q", v)
	}
}

func TestSetThenRemoveRestoresDefault(t *testing.T) {
	db := NewDatabase(nil)
	SetInput(db, "Name", "a", "alice")
	if v, ok := GetInput[string](db, "Name", "a"); !ok || v != "alice" {
		t.Fatalf("expected alice, got %q ok=%v", v, ok)
	}
	InvalidateInput(db, "Name", "a")
	if _, ok := GetInput[string](db, "Name", "a"); ok {
		t.Fatal("expected input to be gone after invalidate")
	}
}

func TestMonotoneRevision(t *testing.T) {
	db := NewDatabase(nil)
	r0 := db.CurrentRevision()
	SetInput(db, "X", "k", 1)
	r1 := db.CurrentRevision()
	SetInput(db, "X", "k", 2)
	r2 := db.CurrentRevision()
	if !(r0 < r1 && r1 < r2) {
		t.Fatalf("expected strictly increasing revisions, got %d %d %d", r0, r1, r2)
	}
}

func TestNoSpuriousRecompute(t *testing.T) {
	db := NewDatabase(nil)
	SetInput(db, "X", "k", 10)
	SetInput(db, "Y", "k", 100) // unrelated input

	execCount := 0
	run := func() int {
		ctx := NewContext(db)
		v, _ := Query(ctx, "Double", "k", func(c *Context) (int, error) {
			execCount++
			x, _ := GetInputRecorded[int](c, "X", "k")
			return x * 2, nil
		})
		return v
	}

	if got := run(); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
	if got := run(); got != 20 || execCount != 1 {
		t.Fatalf("expected cached result with 1 execution, got value=%d execs=%d", got, execCount)
	}

	// Mutate an unrelated input; Double must not re-execute.
	SetInput(db, "Y", "k", 200)
	if got := run(); got != 20 || execCount != 1 {
		t.Fatalf("unrelated mutation caused recompute: execs=%d", execCount)
	}

	// Mutate the actual dependency; Double must re-execute.
	SetInput(db, "X", "k", 11)
	if got := run(); got != 22 || execCount != 2 {
		t.Fatalf("expected recompute after dependency change, got value=%d execs=%d", got, execCount)
	}
}

func TestEarlyCutoff(t *testing.T) {
	db := NewDatabase(nil)
	SetInput(db, "Raw", "k", "  hello  ")

	trimExecs := 0
	upperExecs := 0

	runUpper := func() string {
		ctx := NewContext(db)
		v, _ := Query(ctx, "Upper", "k", func(c *Context) (string, error) {
			upperExecs++
			trimmed, _ := Query(c, "Trim", "k", func(c2 *Context) (string, error) {
				trimExecs++
				raw, _ := GetInputRecorded[string](c2, "Raw", "k")
				return trimSpaces(raw), nil
			})
			return upperCase(trimmed), nil
		})
		return v
	}

	if got := runUpper(); got != "HELLO" {
		t.Fatalf("expected HELLO, got %q", got)
	}

	// Change Raw to a value whose trimmed form is unchanged. Trim must
	// re-execute (its input changed), but Upper must not (early cutoff).
	SetInput(db, "Raw", "k", " hello ")
	if got := runUpper(); got != "HELLO" || trimExecs != 2 || upperExecs != 1 {
		t.Fatalf("expected early cutoff: trimExecs=%d upperExecs=%d value=%q", trimExecs, upperExecs, got)
	}
}

func trimSpaces(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

func upperCase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestCycleDetected(t *testing.T) {
	db := NewDatabase(nil)
	ctx := NewContext(db)
	var recurse func(*Context) (int, error)
	recurse = func(c *Context) (int, error) {
		return Query(c, "Self", "k", recurse)
	}
	_, err := Query(ctx, "Self", "k", recurse)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("expected *CycleError, got %T", err)
	}
}
