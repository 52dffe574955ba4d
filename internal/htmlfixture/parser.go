package htmlfixture

import (
	"fmt"

	"corebrowser/pkg/dom"
)

// appendIndex is passed as every InsertElement/InsertText's Index: the
// database clamps an out-of-range index down to len(children), and since
// nodes emitted by this parser are always appended in document order, a
// value too large to ever be in range is a simpler way to say "append"
// than tracking each parent's running child count by hand.
const appendIndex = 1 << 30

// keyAllocator mints fresh, never-reused node keys; *dom.Database satisfies
// it via NewKey, and tests that want deterministic keys without a live
// database can supply their own.
type keyAllocator interface {
	NewKey() dom.NodeKey
}

// Parse tokenizes html (a small HTML-like subset: start/end tags, void
// elements, attributes, text) and returns the sequence of dom.Mutation
// values that would build the equivalent tree, rooted under parent. alloc
// mints each new node's key. An EndOfDocument mutation is appended last, so
// the returned slice is ready to hand to dom.Database.ApplyBatch as-is.
//
// Adapted from the teacher's pkg/html Parser (parser.go): same
// stack-of-open-elements approach, same void-element table, but emitting
// dom.Mutation values against an existing dom.Database instead of building
// its own *html.Document tree — this module's DOM already has a database,
// so there's no second tree to construct and hand off.
func Parse(html string, parent dom.NodeKey, alloc keyAllocator) ([]dom.Mutation, error) {
	p := &parser{tok: newTokenizer(html), alloc: alloc, stack: []dom.NodeKey{parent}}
	return p.run()
}

type parser struct {
	tok   *tokenizer
	alloc keyAllocator
	stack []dom.NodeKey
	muts  []dom.Mutation
}

func (p *parser) run() ([]dom.Mutation, error) {
	for {
		tk, err := p.tok.next()
		if err != nil {
			return nil, fmt.Errorf("htmlfixture: tokenizer error: %w", err)
		}
		if tk.typ == tokenEOF {
			break
		}
		switch tk.typ {
		case tokenStartTag:
			key := p.alloc.NewKey()
			p.muts = append(p.muts, dom.InsertElement{
				Key: key, Parent: p.currentParent(), Index: appendIndex,
				Tag: tk.tagName, Attributes: tk.attributes,
			})
			if !voidElements[tk.tagName] {
				p.push(key)
			}
		case tokenText:
			if tk.text == "" {
				continue
			}
			key := p.alloc.NewKey()
			p.muts = append(p.muts, dom.InsertText{Key: key, Parent: p.currentParent(), Index: appendIndex, Text: tk.text})
		case tokenEndTag:
			if len(p.stack) > 1 {
				p.pop()
			}
		}
	}
	p.muts = append(p.muts, dom.EndOfDocument{})
	return p.muts, nil
}

func (p *parser) currentParent() dom.NodeKey {
	return p.stack[len(p.stack)-1]
}

func (p *parser) push(key dom.NodeKey) {
	p.stack = append(p.stack, key)
}

func (p *parser) pop() {
	p.stack = p.stack[:len(p.stack)-1]
}
