package source

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relation-preload/internal/dbexec"
	"relation-preload/internal/sqlutil"
)

// SQLSource fetches rows from a single table through a query executor.
// WithFilter derives a narrowed copy; the filter participates in FilterState
// so filtered and unfiltered views of one table never share a cache entry.
type SQLSource struct {
	exec     dbexec.QueryExecutor
	table    string
	pkColumn string
	pkKind   IdentifierKind
	columns  []string
	filters  []sq.Sqlizer
}

// NewSQLSource creates a source over table. columns lists the selected
// columns and must include pkColumn.
func NewSQLSource(exec dbexec.QueryExecutor, table, pkColumn string, pkKind IdentifierKind, columns []string) *SQLSource {
	return &SQLSource{
		exec:     exec,
		table:    table,
		pkColumn: pkColumn,
		pkKind:   pkKind,
		columns:  columns,
	}
}

// WithFilter returns a copy of the source narrowed by cond. The receiver is
// not modified, so per-request filters never leak into the shared source.
func (s *SQLSource) WithFilter(cond sq.Sqlizer) *SQLSource {
	clone := *s
	clone.filters = append(append([]sq.Sqlizer(nil), s.filters...), cond)
	return &clone
}

func (s *SQLSource) Name() string {
	return s.table
}

func (s *SQLSource) PrimaryKeyName() string {
	return s.pkColumn
}

func (s *SQLSource) PrepareIdentifier(v any) (any, error) {
	return PrepareIdentifier(s.pkKind, v)
}

// FilterState renders the base select with its filter arguments inlined into
// the text, which is what the preload cache keys on.
func (s *SQLSource) FilterState() string {
	query, args, err := s.baseSelect().ToSql()
	if err != nil {
		// An unbuildable filter still needs a stable, distinct state.
		return fmt.Sprintf("%s|error:%v", s.table, err)
	}
	return fmt.Sprintf("%s|%v", query, args)
}

func (s *SQLSource) baseSelect() sq.SelectBuilder {
	cols := make([]string, len(s.columns))
	for i, c := range s.columns {
		cols[i] = sqlutil.QuoteIdentifier(c)
	}
	builder := sq.Select(cols...).From(sqlutil.QuoteIdentifier(s.table))
	for _, f := range s.filters {
		builder = builder.Where(f)
	}
	return builder
}

func (s *SQLSource) SelectIn(ctx context.Context, ids []any) ([]Object, error) {
	if len(ids) == 0 {
		return []Object{}, nil
	}
	query, args, err := s.baseSelect().
		Where(sq.Eq{sqlutil.QuoteIdentifier(s.pkColumn): ids}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build batch query for %s: %w", s.table, err)
	}
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch fetch from %s failed: %w", s.table, err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch fetch from %s failed: %w", s.table, err)
	}
	return objects, nil
}

func (s *SQLSource) Get(ctx context.Context, id any) (Object, error) {
	query, args, err := s.baseSelect().
		Where(sq.Eq{sqlutil.QuoteIdentifier(s.pkColumn): id}).
		Limit(1).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup query for %s: %w", s.table, err)
	}
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup from %s failed: %w", s.table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("lookup from %s failed: %w", s.table, err)
		}
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, s.table, id)
	}
	return s.scanRecord(rows)
}

func (s *SQLSource) scanRecord(rows dbexec.Rows) (Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read columns for %s: %w", s.table, err)
	}
	raw := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return Record{}, fmt.Errorf("failed to scan row from %s: %w", s.table, err)
	}

	values := make(map[string]any, len(columns))
	for i, name := range columns {
		v := raw[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values[name] = v
	}
	// Normalize the key so cache lookups compare identifiers with ==.
	if pk, ok := values[s.pkColumn]; ok && pk != nil {
		prepared, err := s.PrepareIdentifier(pk)
		if err == nil {
			values[s.pkColumn] = prepared
		}
	}
	return NewRecord(s.pkColumn, values), nil
}
