package source

import (
	"context"
	"fmt"
)

// MemorySource is an in-memory Source with fetch counters. Tests across
// packages use it to assert how many batch and individual fetches a preload
// pass issued.
type MemorySource struct {
	name        string
	pkName      string
	pkKind      IdentifierKind
	filterState string
	objects     []Record

	selectInCalls int
	getCalls      int
	lastSelectIn  []any

	// FailFetches forces every fetch to fail, for batch-error paths.
	FailFetches bool
}

// NewMemorySource creates a source named name whose rows carry their key
// under pkName. Row key values must already be normalized for pkKind.
func NewMemorySource(name, pkName string, pkKind IdentifierKind, objects ...Record) *MemorySource {
	return &MemorySource{
		name:        name,
		pkName:      pkName,
		pkKind:      pkKind,
		filterState: fmt.Sprintf("SELECT * FROM %s", name),
		objects:     objects,
	}
}

// WithFilterState returns a copy reporting a different canonical filter
// state, modelling a filtered view of the same rows.
func (s *MemorySource) WithFilterState(state string) *MemorySource {
	clone := *s
	clone.filterState = state
	return &clone
}

func (s *MemorySource) Name() string           { return s.name }
func (s *MemorySource) PrimaryKeyName() string { return s.pkName }
func (s *MemorySource) FilterState() string    { return s.filterState }

func (s *MemorySource) PrepareIdentifier(v any) (any, error) {
	return PrepareIdentifier(s.pkKind, v)
}

func (s *MemorySource) SelectIn(ctx context.Context, ids []any) ([]Object, error) {
	s.selectInCalls++
	s.lastSelectIn = append([]any(nil), ids...)
	if s.FailFetches {
		return nil, fmt.Errorf("batch fetch from %s failed", s.name)
	}
	requested := make(map[any]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	var out []Object
	for _, obj := range s.objects {
		if _, ok := requested[obj.PrimaryKey()]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (s *MemorySource) Get(ctx context.Context, id any) (Object, error) {
	s.getCalls++
	if s.FailFetches {
		return nil, fmt.Errorf("lookup from %s failed", s.name)
	}
	for _, obj := range s.objects {
		if obj.PrimaryKey() == id {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %v", ErrNotFound, s.name, id)
}

// SelectInCalls reports how many batch fetches were issued.
func (s *MemorySource) SelectInCalls() int { return s.selectInCalls }

// GetCalls reports how many individual fetches were issued.
func (s *MemorySource) GetCalls() int { return s.getCalls }

// LastSelectIn returns the identifier set of the most recent batch fetch.
func (s *MemorySource) LastSelectIn() []any { return s.lastSelectIn }
