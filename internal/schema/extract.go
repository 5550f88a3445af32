package schema

// ExtractIdentifiers reads the raw identifier candidates a relation field
// references in one payload item and normalizes them through the target
// collection. present reports whether the field had any value at all: an
// absent value never becomes a fetch request, while a present value whose
// candidates all fail normalization still registers the relation (with an
// empty set) so the pass resolves it without a query.
//
// Each candidate may be a bare identifier or a mapping carrying the
// identifier under the target's primary-key attribute name. Malformed
// candidates are silently dropped; authoritative validation happens later at
// the field level.
func ExtractIdentifiers(f *Field, item any) (ids []any, present bool) {
	kind := f.Classify()
	if kind != KindSingleRelation && kind != KindManyRelation {
		return nil, false
	}

	value, ok := f.ValueIn(item)
	if !ok || value == nil {
		return nil, false
	}

	var candidates []any
	switch kind {
	case KindManyRelation:
		seq, ok := value.([]any)
		if !ok {
			// A non-sequence value for a many relation is malformed;
			// register the relation but extract nothing.
			return nil, true
		}
		candidates = seq
	case KindSingleRelation:
		candidates = []any{value}
	}

	pkName := f.source.PrimaryKeyName()
	ids = make([]any, 0, len(candidates))
	for _, candidate := range candidates {
		if m, ok := candidate.(map[string]any); ok {
			v, ok := m[pkName]
			if !ok {
				continue
			}
			candidate = v
		}
		if candidate == nil {
			continue
		}
		id, err := f.source.PrepareIdentifier(candidate)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, true
}
