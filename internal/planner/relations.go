package planner

import (
	"relation-preload/internal/schema"
)

// PathSeparator joins relation names into dotted composite paths.
const PathSeparator = "__"

// Relations is the planned query shape: Select paths are eager-joined into
// the parent query, Prefetch paths are fetched in separate indexed batches.
type Relations struct {
	Select   []string
	Prefetch []string
}

// Plan walks s's field tree and classifies every relation path. A leaf
// relation reached without crossing a list boundary is eager-joined; once a
// many-relation or nested list is crossed, every relation reached afterward
// is batch-prefetched, because joining across a to-many hop duplicates
// parent rows.
func Plan(s *schema.Serializer) Relations {
	return plan(s, false)
}

func plan(s *schema.Serializer, toPrefetch bool) Relations {
	var results Relations
	for _, f := range s.Fields() {
		child, childPrefetch := relationChild(f)
		if child == nil {
			continue
		}
		prefetch := toPrefetch || childPrefetch
		appendRelations(&results, plan(child, prefetch), f.Name(), prefetch)
	}
	return results
}

// relationChild returns the child tree to descend into and whether crossing
// this field switches the subtree to prefetch context. Relation fields
// participate only when they carry a representation child; a bare key field
// fetches nothing beyond the parent row.
func relationChild(f *schema.Field) (*schema.Serializer, bool) {
	switch f.Classify() {
	case schema.KindSingleRelation:
		return f.Child(), false
	case schema.KindManyRelation:
		if f.Child() == nil {
			return nil, false
		}
		return f.Child(), true
	case schema.KindNestedSingle:
		return f.Child(), false
	case schema.KindNestedList:
		return f.Child(), true
	default:
		return nil, false
	}
}

// appendRelations merges a child subtree's paths into results under name. A
// childless subtree contributes the field itself; otherwise the child paths
// are prefixed, and a to-one field whose subtree produced no eager paths is
// still eager-joined itself so its own row arrives with the parent query.
func appendRelations(results *Relations, child Relations, name string, prefetch bool) {
	if len(child.Select) == 0 && len(child.Prefetch) == 0 {
		if prefetch {
			results.Prefetch = append(results.Prefetch, name)
		} else {
			results.Select = append(results.Select, name)
		}
		return
	}
	for _, path := range child.Select {
		results.Select = append(results.Select, name+PathSeparator+path)
	}
	for _, path := range child.Prefetch {
		results.Prefetch = append(results.Prefetch, name+PathSeparator+path)
	}
	if !prefetch && len(child.Select) == 0 {
		results.Select = append(results.Select, name)
	}
}
