package dom

import "corebrowser/pkg/query"

// The following accessors are the documented read side of each DOM input
// query. They all take a *query.Context so that whatever higher-layer
// query calls them (selector matching, box generation, layout) picks up
// the DOM relation as a recorded dependency, the same way the teacher's
// recursive layout functions thread a *LayoutEngine through every call
// instead of reaching into global state.

func Type(ctx *query.Context, key NodeKey) (NodeType, bool) {
	return query.GetInputRecorded[NodeType](ctx, NodeTypeInput, key)
}

func Tag(ctx *query.Context, key NodeKey) (string, bool) {
	return query.GetInputRecorded[string](ctx, TagInput, key)
}

func Id(ctx *query.Context, key NodeKey) (string, bool) {
	return query.GetInputRecorded[string](ctx, IdInput, key)
}

func Classes(ctx *query.Context, key NodeKey) ([]string, bool) {
	return query.GetInputRecorded[[]string](ctx, ClassesInput, key)
}

func Attributes(ctx *query.Context, key NodeKey) (map[string]string, bool) {
	return query.GetInputRecorded[map[string]string](ctx, AttributesInput, key)
}

func Attribute(ctx *query.Context, key NodeKey, name string) (string, bool) {
	attrs, ok := Attributes(ctx, key)
	if !ok {
		return "", false
	}
	v, ok := attrs[name]
	return v, ok
}

func Parent(ctx *query.Context, key NodeKey) (NodeKey, bool) {
	return query.GetInputRecorded[NodeKey](ctx, ParentInput, key)
}

func Children(ctx *query.Context, key NodeKey) ([]NodeKey, bool) {
	return query.GetInputRecorded[[]NodeKey](ctx, ChildrenInput, key)
}

func Text(ctx *query.Context, key NodeKey) (string, bool) {
	return query.GetInputRecorded[string](ctx, TextInput, key)
}
