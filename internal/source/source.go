// Package source defines the data-access collaborator relation fields fetch
// from. A Source is a named collection with a primary key, a current filter
// state, a batched IN-list fetch, and a single-row lookup. The preload
// subsystem keys its caches on the canonical text of a source's filter state,
// so two sources over the same table with different filters are distinct
// fetch targets.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ErrNotFound indicates a single-row lookup matched no row.
var ErrNotFound = errors.New("object not found")

// Object is a resolved row exposed to serializers and caches.
type Object interface {
	// PrimaryKey returns the row's identifier, normalized with the owning
	// source's PrepareIdentifier so cached identifiers compare with ==.
	PrimaryKey() any
	// Attribute returns a column value by name.
	Attribute(name string) (any, bool)
}

// Source is a fetchable collection of rows.
type Source interface {
	// Name returns the collection (table) name.
	Name() string
	// PrimaryKeyName returns the primary key attribute name.
	PrimaryKeyName() string
	// FilterState returns the canonical textual form of the collection's
	// current query, including filter arguments. Equal filter states must
	// produce equal strings; different filters must differ.
	FilterState() string
	// PrepareIdentifier normalizes a raw candidate identifier to the
	// collection's key type. Values that cannot be normalized are rejected
	// with an error.
	PrepareIdentifier(v any) (any, error)
	// SelectIn fetches all rows whose primary key is in ids.
	SelectIn(ctx context.Context, ids []any) ([]Object, error)
	// Get fetches a single row by primary key, returning ErrNotFound when
	// no row matches the current filter state.
	Get(ctx context.Context, id any) (Object, error)
}

// IdentifierKind selects how raw payload values normalize to key values.
type IdentifierKind int

const (
	// IdentifierInt keys normalize to int64.
	IdentifierInt IdentifierKind = iota
	// IdentifierString keys normalize to string.
	IdentifierString
	// IdentifierUUID keys normalize to the canonical uuid string form.
	IdentifierUUID
)

// PrepareIdentifier normalizes v according to kind.
func PrepareIdentifier(kind IdentifierKind, v any) (any, error) {
	switch kind {
	case IdentifierInt:
		return prepareInt(v)
	case IdentifierString:
		return prepareString(v)
	case IdentifierUUID:
		return prepareUUID(v)
	default:
		return nil, fmt.Errorf("unknown identifier kind %d", kind)
	}
}

func prepareInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		// JSON numbers decode as float64; only whole values are valid keys.
		if n != float64(int64(n)) {
			return nil, fmt.Errorf("identifier %v is not an integer", v)
		}
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("identifier %q is not an integer", n)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("identifier %v (%T) is not an integer", v, v)
	}
}

func prepareString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil, errors.New("identifier is empty")
		}
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return nil, fmt.Errorf("identifier %v (%T) is not a string", v, v)
	}
}

func prepareUUID(v any) (any, error) {
	switch u := v.(type) {
	case uuid.UUID:
		return u.String(), nil
	case string:
		parsed, err := uuid.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("identifier %q is not a uuid", u)
		}
		return parsed.String(), nil
	case []byte:
		parsed, err := uuid.ParseBytes(u)
		if err != nil {
			return nil, fmt.Errorf("identifier %q is not a uuid", u)
		}
		return parsed.String(), nil
	default:
		return nil, fmt.Errorf("identifier %v (%T) is not a uuid", v, v)
	}
}
