package schema

import (
	"relation-preload/internal/source"
)

// Representation renders obj as an external mapping. Relation fields render
// either the bare key or, when the field carries a representation child and
// is not pk-only, the nested form of the related object (which must already
// be attached to the attribute, e.g. by an eager-joined read).
func (s *Serializer) Representation(obj source.Object) map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		value, ok := obj.Attribute(f.name)
		if !ok {
			continue
		}
		out[f.name] = f.Represent(value)
	}
	return out
}

// Represent renders one field value: objects render as keys or nested
// mappings per the field's configuration, other values pass through.
func (f *Field) Represent(value any) any {
	switch f.Classify() {
	case KindSingleRelation, KindNestedSingle:
		return f.representOne(value)
	case KindManyRelation, KindNestedList:
		seq, ok := value.([]any)
		if !ok {
			return f.representOne(value)
		}
		out := make([]any, len(seq))
		for i, item := range seq {
			out[i] = f.representOne(item)
		}
		return out
	default:
		return value
	}
}

func (f *Field) representOne(value any) any {
	obj, ok := value.(source.Object)
	if !ok {
		return value
	}
	switch f.Classify() {
	case KindNestedSingle, KindNestedList:
		return f.child.Representation(obj)
	default:
		if f.RendersPKOnly() {
			return obj.PrimaryKey()
		}
		return f.child.Representation(obj)
	}
}
