package htmlfixture

import (
	"testing"

	"corebrowser/pkg/dom"
)

// sequentialAllocator mints NodeKeys 1, 2, 3, ... so tests can assert on
// exact key values without a live dom.Database.
type sequentialAllocator struct{ next dom.NodeKey }

func (a *sequentialAllocator) NewKey() dom.NodeKey {
	a.next++
	return a.next
}

func TestParseNestsElementsByTagStack(t *testing.T) {
	alloc := &sequentialAllocator{}
	muts, err := Parse(`<div><span>hi</span></div>`, dom.RootKey, alloc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(muts) != 4 {
		t.Fatalf("expected 4 mutations (div, span, text, EndOfDocument), got %d: %+v", len(muts), muts)
	}

	div, ok := muts[0].(dom.InsertElement)
	if !ok || div.Tag != "div" || div.Parent != dom.RootKey {
		t.Fatalf("expected first mutation to insert div under root, got %+v", muts[0])
	}
	span, ok := muts[1].(dom.InsertElement)
	if !ok || span.Tag != "span" || span.Parent != div.Key {
		t.Fatalf("expected span to nest inside div, got %+v", muts[1])
	}
	text, ok := muts[2].(dom.InsertText)
	if !ok || text.Text != "hi" || text.Parent != span.Key {
		t.Fatalf("expected text node \"hi\" inside span, got %+v", muts[2])
	}
	if _, ok := muts[3].(dom.EndOfDocument); !ok {
		t.Fatalf("expected the last mutation to be EndOfDocument, got %+v", muts[3])
	}
}

func TestParseClosesSiblingsIndependently(t *testing.T) {
	alloc := &sequentialAllocator{}
	muts, err := Parse(`<div></div><p></p>`, dom.RootKey, alloc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var elements []dom.InsertElement
	for _, m := range muts {
		if e, ok := m.(dom.InsertElement); ok {
			elements = append(elements, e)
		}
	}
	if len(elements) != 2 {
		t.Fatalf("expected two sibling elements, got %d", len(elements))
	}
	if elements[0].Parent != dom.RootKey || elements[1].Parent != dom.RootKey {
		t.Fatalf("expected both div and p to be root-level siblings, got %+v", elements)
	}
}

func TestParseVoidElementDoesNotOpenAScope(t *testing.T) {
	alloc := &sequentialAllocator{}
	muts, err := Parse(`<div><img src="a.png"><span>after</span></div>`, dom.RootKey, alloc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var img, span *dom.InsertElement
	for i := range muts {
		if e, ok := muts[i].(dom.InsertElement); ok {
			switch e.Tag {
			case "img":
				img = &e
			case "span":
				span = &e
			}
		}
	}
	if img == nil || span == nil {
		t.Fatalf("expected both img and span to be inserted, got %+v", muts)
	}
	if img.Attributes["src"] != "a.png" {
		t.Fatalf("expected img's src attribute to be captured, got %+v", img.Attributes)
	}
	if span.Parent != img.Parent {
		t.Fatalf("expected span to be a sibling of img (inside div), not nested inside it, got span.Parent=%v img.Parent=%v", span.Parent, img.Parent)
	}
}

func TestParseEndOfDocumentIsAlwaysLast(t *testing.T) {
	alloc := &sequentialAllocator{}
	muts, err := Parse(`plain text, no tags at all`, dom.RootKey, alloc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(muts) == 0 {
		t.Fatal("expected at least the EndOfDocument mutation")
	}
	if _, ok := muts[len(muts)-1].(dom.EndOfDocument); !ok {
		t.Fatalf("expected the final mutation to be EndOfDocument, got %+v", muts[len(muts)-1])
	}
}
