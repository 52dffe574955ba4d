package dom

import (
	"errors"
	"testing"

	"corebrowser/pkg/query"
)

func newTestDB() (*query.Database, *Database) {
	q := query.NewDatabase(nil)
	return q, NewDatabase(q)
}

func TestInsertElementAndReadBack(t *testing.T) {
	q, db := newTestDB()
	key := db.NewKey()
	err := db.Apply(InsertElement{Key: key, Parent: RootKey, Index: 0, Tag: "div", Attributes: map[string]string{"id": "a", "class": "x y"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := query.NewContext(q)
	if tag, ok := Tag(ctx, key); !ok || tag != "div" {
		t.Fatalf("expected tag div, got %q ok=%v", tag, ok)
	}
	if id, ok := Id(ctx, key); !ok || id != "a" {
		t.Fatalf("expected id a, got %q ok=%v", id, ok)
	}
	classes, ok := Classes(ctx, key)
	if !ok || len(classes) != 2 || classes[0] != "x" || classes[1] != "y" {
		t.Fatalf("expected classes [x y], got %v ok=%v", classes, ok)
	}
	if parent, ok := Parent(ctx, key); !ok || parent != RootKey {
		t.Fatalf("expected parent root, got %v ok=%v", parent, ok)
	}
	children, ok := Children(ctx, RootKey)
	if !ok || len(children) != 1 || children[0] != key {
		t.Fatalf("expected root children [key], got %v ok=%v", children, ok)
	}
}

func TestInsertUnknownParentIsProtocolError(t *testing.T) {
	_, db := newTestDB()
	key := db.NewKey()
	err := db.Apply(InsertElement{Key: key, Parent: NodeKey(9999), Index: 0, Tag: "div"})
	var perr *ProtocolError
	if !errors.As(err, &perr) || !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("expected ErrUnknownParent protocol error, got %v", err)
	}
}

func TestInsertDuplicateKeyIsProtocolError(t *testing.T) {
	_, db := newTestDB()
	key := db.NewKey()
	if err := db.Apply(InsertElement{Key: key, Parent: RootKey, Tag: "div"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := db.Apply(InsertElement{Key: key, Parent: RootKey, Tag: "span"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestInsertIndexIsClamped(t *testing.T) {
	q, db := newTestDB()
	a, b, c := db.NewKey(), db.NewKey(), db.NewKey()
	db.Apply(InsertElement{Key: a, Parent: RootKey, Index: 0, Tag: "a"})
	db.Apply(InsertElement{Key: b, Parent: RootKey, Index: 0, Tag: "b"})
	db.Apply(InsertElement{Key: c, Parent: RootKey, Index: 99, Tag: "c"})

	ctx := query.NewContext(q)
	children, _ := Children(ctx, RootKey)
	want := []NodeKey{b, a, c}
	if len(children) != len(want) {
		t.Fatalf("expected %v, got %v", want, children)
	}
	for i := range want {
		if children[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, children)
		}
	}
}

func TestRemoveNodeInvalidatesSubtreeRecursively(t *testing.T) {
	q, db := newTestDB()
	parent := db.NewKey()
	child := db.NewKey()
	db.Apply(InsertElement{Key: parent, Parent: RootKey, Tag: "div"})
	db.Apply(InsertElement{Key: child, Parent: parent, Tag: "span"})

	if err := db.Apply(RemoveNode{Key: parent}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := query.GetInput[string](q, TagInput, parent); ok {
		t.Fatal("expected parent's tag input gone")
	}
	if _, ok := query.GetInput[string](q, TagInput, child); ok {
		t.Fatal("expected child's tag input gone after recursive removal")
	}

	ctx := query.NewContext(q)
	children, _ := Children(ctx, RootKey)
	if len(children) != 0 {
		t.Fatalf("expected root to have no children after removal, got %v", children)
	}
}

func TestSetAttributeUpdatesIdAndClasses(t *testing.T) {
	q, db := newTestDB()
	key := db.NewKey()
	db.Apply(InsertElement{Key: key, Parent: RootKey, Tag: "div"})
	db.Apply(SetAttribute{Key: key, Name: "id", Value: "hero"})
	db.Apply(SetAttribute{Key: key, Name: "class", Value: "  big   bold "})

	ctx := query.NewContext(q)
	if id, _ := Id(ctx, key); id != "hero" {
		t.Fatalf("expected id hero, got %q", id)
	}
	classes, _ := Classes(ctx, key)
	if len(classes) != 2 || classes[0] != "big" || classes[1] != "bold" {
		t.Fatalf("expected [big bold], got %v", classes)
	}
	attrs, _ := Attributes(ctx, key)
	if attrs["id"] != "hero" || attrs["class"] != "  big   bold " {
		t.Fatalf("expected attributes map to retain raw values, got %v", attrs)
	}
}

func TestSetAttributeOnUnknownNodeIsProtocolError(t *testing.T) {
	_, db := newTestDB()
	err := db.Apply(SetAttribute{Key: NodeKey(424242), Name: "id", Value: "x"})
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
}

func TestEndOfDocumentIsIdempotent(t *testing.T) {
	_, db := newTestDB()
	if db.Ended() {
		t.Fatal("expected not ended initially")
	}
	if err := db.Apply(EndOfDocument{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Apply(EndOfDocument{}); err != nil {
		t.Fatalf("expected second EndOfDocument to be a no-op, got error: %v", err)
	}
	if !db.Ended() {
		t.Fatal("expected ended after EndOfDocument")
	}
}

func TestApplyBatchCollectsAllProtocolErrors(t *testing.T) {
	_, db := newTestDB()
	err := db.ApplyBatch([]Mutation{
		InsertElement{Key: db.NewKey(), Parent: NodeKey(777), Tag: "a"},
		SetAttribute{Key: NodeKey(888), Name: "id", Value: "x"},
	})
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if !errors.Is(err, ErrUnknownParent) || !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected both errors present in aggregate, got %v", err)
	}
}

func TestInsertTextNode(t *testing.T) {
	q, db := newTestDB()
	key := db.NewKey()
	if err := db.Apply(InsertText{Key: key, Parent: RootKey, Text: "hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := query.NewContext(q)
	if typ, ok := Type(ctx, key); !ok || typ != TextNode {
		t.Fatalf("expected TextNode, got %v ok=%v", typ, ok)
	}
	if text, ok := Text(ctx, key); !ok || text != "hello" {
		t.Fatalf("expected hello, got %q ok=%v", text, ok)
	}
}
