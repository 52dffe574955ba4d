package dom

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"corebrowser/pkg/query"
)

// Query names under which each DOM relation is exposed as an input query
// on the shared query.Database. Kept separate per relation (rather than one
// "Node" blob) so that, say, changing a class list doesn't invalidate every
// dependent that only reads Tag.
const (
	NodeTypeInput   = "dom.NodeType"
	TagInput        = "dom.Tag"
	IdInput         = "dom.Id"
	ClassesInput    = "dom.Classes"
	AttributesInput = "dom.Attributes"
	ParentInput     = "dom.Parent"
	ChildrenInput   = "dom.Children"
	TextInput       = "dom.Text"
)

type record struct {
	typ      NodeType
	tag      string
	parent   NodeKey
	children []NodeKey
}

// Database is the authoritative DOM tree. It keeps its own structural
// bookkeeping (for validating mutations and walking subtrees on removal)
// and mirrors every relation into a shared *query.Database so that style
// and layout queries can depend on exactly the slice of DOM state they
// actually read.
type Database struct {
	q *query.Database

	mu      sync.Mutex
	nodes   map[NodeKey]*record
	nextKey int64
	ended   bool
}

// NewDatabase creates a DOM rooted at RootKey (a DocumentNode) backed by q.
func NewDatabase(q *query.Database) *Database {
	db := &Database{
		q:       q,
		nodes:   make(map[NodeKey]*record),
		nextKey: int64(RootKey) + 1,
	}
	db.nodes[RootKey] = &record{typ: DocumentNode}
	query.SetInput(q, NodeTypeInput, RootKey, DocumentNode)
	query.SetInput(q, ChildrenInput, RootKey, []NodeKey{})
	return db
}

// NewKey hands out a fresh, never-reused node key.
func (db *Database) NewKey() NodeKey {
	return NodeKey(atomic.AddInt64(&db.nextKey, 1) - 1)
}

// Apply applies a single mutation, returning a *ProtocolError if it
// violates a structural invariant. The database is left unchanged on error.
func (db *Database) Apply(m Mutation) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	switch mm := m.(type) {
	case InsertElement:
		return db.insert(mm.Key, mm.Parent, mm.Index, ElementNode, mm.Tag, "", mm.Attributes)
	case InsertText:
		return db.insert(mm.Key, mm.Parent, mm.Index, TextNode, "", mm.Text, nil)
	case SetAttribute:
		return db.setAttribute(mm.Key, mm.Name, mm.Value)
	case RemoveNode:
		return db.remove(mm.Key)
	case EndOfDocument:
		db.ended = true
		return nil
	default:
		return protoErr(0, ErrUnknownNode)
	}
}

// ApplyBatch applies mutations in order, continuing past a failing one so
// that a caller (e.g. an external parser finishing a malformed document)
// sees every protocol violation in the batch rather than only the first.
func (db *Database) ApplyBatch(ms []Mutation) error {
	var errs error
	for _, m := range ms {
		if err := db.Apply(m); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (db *Database) insert(key, parent NodeKey, index int, typ NodeType, tag, text string, attrs map[string]string) error {
	if _, exists := db.nodes[key]; exists {
		return protoErr(key, ErrDuplicateKey)
	}
	pr, ok := db.nodes[parent]
	if !ok {
		return protoErr(key, ErrUnknownParent)
	}
	if index < 0 {
		index = 0
	}
	if index > len(pr.children) {
		index = len(pr.children)
	}

	rec := &record{typ: typ, tag: tag, parent: parent}
	db.nodes[key] = rec

	children := make([]NodeKey, 0, len(pr.children)+1)
	children = append(children, pr.children[:index]...)
	children = append(children, key)
	children = append(children, pr.children[index:]...)
	pr.children = children

	query.SetInput(db.q, NodeTypeInput, key, typ)
	query.SetInput(db.q, ParentInput, key, parent)
	query.SetInput(db.q, ChildrenInput, key, []NodeKey{})
	query.SetInput(db.q, ChildrenInput, parent, append([]NodeKey(nil), children...))

	switch typ {
	case ElementNode:
		query.SetInput(db.q, TagInput, key, tag)
		db.writeAttributes(key, attrs)
	case TextNode:
		query.SetInput(db.q, TextInput, key, text)
	}
	return nil
}

func (db *Database) writeAttributes(key NodeKey, attrs map[string]string) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	cp := make(map[string]string, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	query.SetInput(db.q, AttributesInput, key, cp)
	query.SetInput(db.q, IdInput, key, cp["id"])
	query.SetInput(db.q, ClassesInput, key, splitClasses(cp["class"]))
}

func (db *Database) setAttribute(key NodeKey, name, value string) error {
	rec, ok := db.nodes[key]
	if !ok {
		return protoErr(key, ErrUnknownNode)
	}
	if rec.typ != ElementNode {
		return protoErr(key, ErrWrongNodeType)
	}
	attrs, _ := query.GetInput[map[string]string](db.q, AttributesInput, key)
	cp := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		cp[k] = v
	}
	cp[name] = value
	query.SetInput(db.q, AttributesInput, key, cp)
	switch name {
	case "id":
		query.SetInput(db.q, IdInput, key, value)
	case "class":
		query.SetInput(db.q, ClassesInput, key, splitClasses(value))
	}
	return nil
}

func splitClasses(class string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(class); i++ {
		if i < len(class) && class[i] != ' ' && class[i] != '\t' && class[i] != '\n' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, class[start:i])
			start = -1
		}
	}
	return out
}

// remove deletes key and, recursively, its descendants, invalidating every
// relation each removed node held and fixing up its former parent's
// children list.
func (db *Database) remove(key NodeKey) error {
	rec, ok := db.nodes[key]
	if !ok {
		return protoErr(key, ErrUnknownNode)
	}
	if key == RootKey {
		return protoErr(key, ErrWrongNodeType)
	}

	parent := rec.parent
	if pr, ok := db.nodes[parent]; ok {
		children := make([]NodeKey, 0, len(pr.children))
		for _, c := range pr.children {
			if c != key {
				children = append(children, c)
			}
		}
		pr.children = children
		query.SetInput(db.q, ChildrenInput, parent, append([]NodeKey(nil), children...))
	}

	db.removeSubtree(key)
	return nil
}

func (db *Database) removeSubtree(key NodeKey) {
	rec, ok := db.nodes[key]
	if !ok {
		return
	}
	for _, c := range rec.children {
		db.removeSubtree(c)
	}
	delete(db.nodes, key)

	query.InvalidateInput(db.q, NodeTypeInput, key)
	query.InvalidateInput(db.q, ParentInput, key)
	query.InvalidateInput(db.q, ChildrenInput, key)
	switch rec.typ {
	case ElementNode:
		query.InvalidateInput(db.q, TagInput, key)
		query.InvalidateInput(db.q, AttributesInput, key)
		query.InvalidateInput(db.q, IdInput, key)
		query.InvalidateInput(db.q, ClassesInput, key)
	case TextNode:
		query.InvalidateInput(db.q, TextInput, key)
	}
}

// Ended reports whether EndOfDocument has been applied.
func (db *Database) Ended() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.ended
}

// Exists reports whether key currently names a live node. Structural
// bookkeeping only; does not participate in query dependency tracking.
func (db *Database) Exists(key NodeKey) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.nodes[key]
	return ok
}
