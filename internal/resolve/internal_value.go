package resolve

import (
	"context"
	"fmt"

	"relation-preload/internal/schema"
)

// InternalValue converts one field's raw payload value to its typed form.
// Relation kinds resolve to objects through the installed strategy; nested
// kinds validate recursively; scalars pass through unchanged.
func InternalValue(ctx context.Context, f *schema.Field, data any) (any, error) {
	switch f.Classify() {
	case schema.KindSingleRelation:
		id, err := identifierFrom(data, f.Source().PrimaryKeyName())
		if err != nil {
			return nil, err
		}
		return Resolve(ctx, f, id)
	case schema.KindManyRelation:
		seq, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected a list of identifiers", ErrRelatedNotFound)
		}
		objects := make([]any, 0, len(seq))
		for _, item := range seq {
			id, err := identifierFrom(item, f.Source().PrimaryKeyName())
			if err != nil {
				return nil, err
			}
			obj, err := Resolve(ctx, f, id)
			if err != nil {
				return nil, err
			}
			objects = append(objects, obj)
		}
		return objects, nil
	case schema.KindNestedSingle:
		item, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object for field %q", f.Name())
		}
		return ValidateItem(ctx, f.Child(), item)
	case schema.KindNestedList:
		seq, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list of objects for field %q", f.Name())
		}
		out := make([]any, 0, len(seq))
		for _, raw := range seq {
			item, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected an object for field %q", f.Name())
			}
			validated, err := ValidateItem(ctx, f.Child(), item)
			if err != nil {
				return nil, err
			}
			out = append(out, validated)
		}
		return out, nil
	default:
		return data, nil
	}
}

// ValidateItem converts one payload mapping through a serializer's writable
// fields. Absent fields are skipped; the first failing field aborts with its
// name attached.
func ValidateItem(ctx context.Context, s *schema.Serializer, item map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(item))
	for _, f := range s.WritableFields() {
		raw, ok := item[f.Name()]
		if !ok {
			continue
		}
		value, err := InternalValue(ctx, f, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		out[f.Name()] = value
	}
	return out, nil
}

// ValidatePayload validates a payload that is either one mapping or a
// sequence of mappings, returning one validated mapping per input item.
func ValidatePayload(ctx context.Context, s *schema.Serializer, payload any) ([]map[string]any, error) {
	items, ok := payload.([]any)
	if !ok {
		items = []any{payload}
	}
	out := make([]map[string]any, 0, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: expected an object", i)
		}
		validated, err := ValidateItem(ctx, s, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, validated)
	}
	return out, nil
}

// identifierFrom extracts a single identifier from a value that is either a
// bare key or a mapping carrying the key under pkName.
func identifierFrom(data any, pkName string) (any, error) {
	if m, ok := data.(map[string]any); ok {
		v, ok := m[pkName]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: missing %q", ErrRelatedNotFound, pkName)
		}
		return v, nil
	}
	if data == nil {
		return nil, fmt.Errorf("%w: identifier is null", ErrRelatedNotFound)
	}
	return data, nil
}
