// Package htmlfixture is the HTML-ish fixture loader from SPEC_FULL.md §6:
// not part of the core's contract surface, but a convenience adapter that
// turns a small HTML-like string into a sequence of dom.Mutation values so
// tests and cmd/render have something to feed the real mutation sink with.
// An embedder with a real HTML5 tokenizer would replace this wholesale;
// no core package (pkg/dom, pkg/style, pkg/boxtree, pkg/layout, pkg/paint,
// pkg/engine) imports it.
//
// Adapted near-verbatim from the teacher's pkg/html tokenizer
// (html/tokenizer.go): same hand-rolled state machine over a string
// cursor, same token shape. Besides the package name and doc comments, only
// the type and field names (unexported here) and an "htmlfixture:" prefix
// on every error message differ — the teacher's tokenizer already has no DOM-construction opinion
// baked into it, so there was nothing domain-specific to adapt.
package htmlfixture

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenStartTag tokenType = iota
	tokenEndTag
	tokenText
	tokenEOF
)

type token struct {
	typ        tokenType
	tagName    string
	attributes map[string]string
	text       string
}

type tokenizer struct {
	input string
	pos   int
}

func newTokenizer(html string) *tokenizer {
	return &tokenizer{input: html, pos: 0}
}

func (t *tokenizer) next() (token, error) {
	t.skipWhitespace()
	if t.pos >= len(t.input) {
		return token{typ: tokenEOF}, nil
	}
	if t.input[t.pos] == '<' {
		return t.readTag()
	}
	return t.readText()
}

func (t *tokenizer) readTag() (token, error) {
	t.pos++
	isEndTag := false
	if t.pos < len(t.input) && t.input[t.pos] == '/' {
		isEndTag = true
		t.pos++
	}
	tagName := t.readTagName()
	if tagName == "" {
		return token{}, fmt.Errorf("htmlfixture: expected tag name at position %d", t.pos)
	}
	if isEndTag {
		if err := t.skipTo('>'); err != nil {
			return token{}, err
		}
		t.pos++
		return token{typ: tokenEndTag, tagName: tagName}, nil
	}
	attributes := make(map[string]string)
	for {
		t.skipWhitespace()
		if t.pos >= len(t.input) {
			return token{}, fmt.Errorf("htmlfixture: unexpected EOF in tag")
		}
		if t.input[t.pos] == '>' {
			t.pos++
			break
		}
		if t.input[t.pos] == '/' {
			t.pos++
			t.skipWhitespace()
			if t.pos < len(t.input) && t.input[t.pos] == '>' {
				t.pos++
				break
			}
		}
		name, value, err := t.readAttribute()
		if err != nil {
			return token{}, err
		}
		attributes[name] = value
	}
	return token{typ: tokenStartTag, tagName: tagName, attributes: attributes}, nil
}

func (t *tokenizer) readTagName() string {
	start := t.pos
	for t.pos < len(t.input) && isTagNameChar(t.input[t.pos]) {
		t.pos++
	}
	return strings.ToLower(t.input[start:t.pos])
}

func (t *tokenizer) readAttribute() (string, string, error) {
	start := t.pos
	for t.pos < len(t.input) && isAttributeNameChar(t.input[t.pos]) {
		t.pos++
	}
	name := strings.ToLower(t.input[start:t.pos])
	if name == "" {
		return "", "", fmt.Errorf("htmlfixture: expected attribute name at position %d", t.pos)
	}
	t.skipWhitespace()
	if t.pos >= len(t.input) || t.input[t.pos] != '=' {
		return name, "", nil
	}
	t.pos++
	t.skipWhitespace()
	value, err := t.readAttributeValue()
	if err != nil {
		return "", "", err
	}
	return name, value, nil
}

func (t *tokenizer) readAttributeValue() (string, error) {
	if t.pos >= len(t.input) {
		return "", fmt.Errorf("htmlfixture: expected attribute value at position %d", t.pos)
	}
	quote := t.input[t.pos]
	if quote == '"' || quote == '\'' {
		t.pos++
		start := t.pos
		for t.pos < len(t.input) && t.input[t.pos] != quote {
			t.pos++
		}
		if t.pos >= len(t.input) {
			return "", fmt.Errorf("htmlfixture: unterminated attribute value")
		}
		value := t.input[start:t.pos]
		t.pos++
		return value, nil
	}
	start := t.pos
	for t.pos < len(t.input) && !unicode.IsSpace(rune(t.input[t.pos])) && t.input[t.pos] != '>' {
		t.pos++
	}
	return t.input[start:t.pos], nil
}

func (t *tokenizer) readText() (token, error) {
	start := t.pos
	for t.pos < len(t.input) && t.input[t.pos] != '<' {
		t.pos++
	}
	text := strings.TrimSpace(t.input[start:t.pos])
	if text == "" && t.pos < len(t.input) {
		return t.next()
	}
	return token{typ: tokenText, text: text}, nil
}

func (t *tokenizer) skipWhitespace() {
	for t.pos < len(t.input) && unicode.IsSpace(rune(t.input[t.pos])) {
		t.pos++
	}
}

func (t *tokenizer) skipTo(target byte) error {
	for t.pos < len(t.input) && t.input[t.pos] != target {
		t.pos++
	}
	if t.pos >= len(t.input) {
		return fmt.Errorf("htmlfixture: expected '%c' but reached EOF", target)
	}
	return nil
}

func isTagNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isAttributeNameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == ':'
}

var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "input": true,
	"meta": true, "link": true, "area": true, "base": true,
	"col": true, "embed": true, "param": true, "source": true,
	"track": true, "wbr": true,
}
