// Package schema models a serializer's declared field tree: each field
// carries a relation-kind tag assigned at construction, an optional target
// collection for relation kinds, and an optional child serializer for nested
// kinds. The preload and planner subsystems traverse this tree; they never
// inspect runtime types.
package schema

import (
	"relation-preload/internal/source"
)

// Kind classifies a field's role in the tree.
type Kind int

const (
	// KindScalar fields carry plain values and are ignored by preloading
	// and planning.
	KindScalar Kind = iota
	// KindSingleRelation fields reference one row of a target collection
	// by primary key.
	KindSingleRelation
	// KindManyRelation fields reference multiple rows of a target
	// collection by primary key.
	KindManyRelation
	// KindNestedSingle fields embed a child serializer for one object.
	KindNestedSingle
	// KindNestedList fields embed a child serializer for a list of objects.
	KindNestedList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSingleRelation:
		return "single-relation"
	case KindManyRelation:
		return "many-relation"
	case KindNestedSingle:
		return "nested-single"
	case KindNestedList:
		return "nested-list"
	default:
		return "unknown"
	}
}

// Cache is the lookup store a preload pass binds to a root serializer.
// Implemented by the preload manager.
type Cache interface {
	// Find returns the cached object for id under fingerprint fp.
	Find(fp string, id any) (source.Object, bool)
	// Append records an individually fetched object under fp for the rest
	// of the pass.
	Append(fp string, obj source.Object)
}

// Field is one declared serializer field. Immutable once its serializer is
// constructed.
type Field struct {
	name     string
	kind     Kind
	readOnly bool
	pkOnly   bool
	source   source.Source
	child    *Serializer
	owner    *Serializer
}

// FieldOption adjusts a field at construction.
type FieldOption func(*Field)

// ReadOnly marks the field as excluded from writable traversal. A read-only
// relation never contributes identifiers to a preload pass but still
// resolves through the standard fetch when referenced directly.
func ReadOnly() FieldOption {
	return func(f *Field) { f.readOnly = true }
}

// PKOnly renders the relation as its bare primary key even when a child
// serializer is attached.
func PKOnly() FieldOption {
	return func(f *Field) { f.pkOnly = true }
}

// WithRepresentation attaches a child serializer used to render the related
// object as a nested mapping instead of a bare key.
func WithRepresentation(child *Serializer) FieldOption {
	return func(f *Field) { f.child = child }
}

// Scalar declares a plain value field.
func Scalar(name string, opts ...FieldOption) *Field {
	return newField(name, KindScalar, nil, nil, opts)
}

// Relation declares a single-relation field targeting src.
func Relation(name string, src source.Source, opts ...FieldOption) *Field {
	return newField(name, KindSingleRelation, src, nil, opts)
}

// ManyRelation declares a multi-valued relation field targeting src.
func ManyRelation(name string, src source.Source, opts ...FieldOption) *Field {
	return newField(name, KindManyRelation, src, nil, opts)
}

// Nested declares a single nested-object field with a bound child tree.
func Nested(name string, child *Serializer, opts ...FieldOption) *Field {
	return newField(name, KindNestedSingle, nil, child, opts)
}

// NestedList declares a list-of-nested-objects field with a bound child tree.
func NestedList(name string, child *Serializer, opts ...FieldOption) *Field {
	return newField(name, KindNestedList, nil, child, opts)
}

func newField(name string, kind Kind, src source.Source, child *Serializer, opts []FieldOption) *Field {
	f := &Field{name: name, kind: kind, source: src, child: child}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the field's external (payload) name.
func (f *Field) Name() string { return f.name }

// Classify returns the field's kind. A relation kind without a target
// collection or a nested kind without a child tree degrades to scalar, the
// safe default: no identifiers extracted, no relation inferred.
func (f *Field) Classify() Kind {
	switch f.kind {
	case KindSingleRelation, KindManyRelation:
		if f.source == nil {
			return KindScalar
		}
	case KindNestedSingle, KindNestedList:
		if f.child == nil {
			return KindScalar
		}
	}
	return f.kind
}

// Source returns the relation's target collection, or nil for non-relation
// kinds.
func (f *Field) Source() source.Source { return f.source }

// Child returns the bound child serializer, if any. Relation kinds carry one
// only when configured to render nested representations.
func (f *Field) Child() *Serializer { return f.child }

// Owner returns the serializer the field is declared on.
func (f *Field) Owner() *Serializer { return f.owner }

// IsReadOnly reports whether the field is excluded from writable traversal.
func (f *Field) IsReadOnly() bool { return f.readOnly }

// RendersPKOnly reports whether representation emits the bare key.
func (f *Field) RendersPKOnly() bool { return f.pkOnly || f.child == nil }

// ValueIn reads the field's raw value from one payload item. A mapping item
// is read by external name (absent reported via ok=false); any other item is
// treated as the value itself, which happens when the walker has already
// descended to the right level.
func (f *Field) ValueIn(item any) (any, bool) {
	if m, ok := item.(map[string]any); ok {
		v, present := m[f.name]
		return v, present
	}
	return item, item != nil
}

// Serializer is an immutable field tree. The root of a tree may own a
// preload cache; children reach it through the parent chain.
type Serializer struct {
	name   string
	fields []*Field
	parent *Serializer
	cache  Cache
}

// New constructs a serializer and binds field ownership. Child serializers
// of nested and relation fields get their parent pointer set here, so a
// serializer instance must not be shared between two parents.
func New(name string, fields ...*Field) *Serializer {
	s := &Serializer{name: name, fields: fields}
	for _, f := range fields {
		f.owner = s
		if f.child != nil {
			f.child.parent = s
		}
	}
	return s
}

// Name returns the serializer's name.
func (s *Serializer) Name() string { return s.name }

// Fields returns all declared fields in declaration order.
func (s *Serializer) Fields() []*Field { return s.fields }

// WritableFields returns the fields that participate in validation and
// preloading.
func (s *Serializer) WritableFields() []*Field {
	out := make([]*Field, 0, len(s.fields))
	for _, f := range s.fields {
		if !f.readOnly {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the declared field with the given external name, or nil.
func (s *Serializer) Field(name string) *Field {
	for _, f := range s.fields {
		if f.name == name {
			return f
		}
	}
	return nil
}

// Parent returns the owning serializer for nested trees, nil at the root.
func (s *Serializer) Parent() *Serializer { return s.parent }

// BindCache makes s the owner of a preload cache for the current pass.
func (s *Serializer) BindCache(c Cache) { s.cache = c }

// UnbindCache releases the owned cache at the end of a pass.
func (s *Serializer) UnbindCache() { s.cache = nil }

// NearestCache walks the parent chain upward and returns the first owned
// cache, or nil when no ancestor owns one.
func (s *Serializer) NearestCache() Cache {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.cache != nil {
			return cur.cache
		}
	}
	return nil
}
