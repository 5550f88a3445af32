package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"relation-preload/internal/schema"
	"relation-preload/internal/sqlutil"
)

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []any
}

// PlanEager builds the read query for table that LEFT JOINs every eager path
// in rels. Each hop is joined under an alias equal to its dotted path, so a
// table reached through two different paths joins twice. The foreign key
// column on the parent side is the relation field's external name.
func PlanEager(table string, s *schema.Serializer, rels Relations) (SQLQuery, error) {
	builder := sq.Select(sqlutil.QuoteIdentifier(table) + ".*").
		From(sqlutil.QuoteIdentifier(table))

	joined := make(map[string]struct{})
	for _, path := range rels.Select {
		parentAlias := table
		cur := s
		parts := strings.Split(path, PathSeparator)
		for i, part := range parts {
			if cur == nil {
				return SQLQuery{}, fmt.Errorf("eager path %q has no field tree at %q", path, part)
			}
			f := cur.Field(part)
			if f == nil || f.Source() == nil {
				return SQLQuery{}, fmt.Errorf("eager path %q is not relation-backed at %q", path, part)
			}
			alias := strings.Join(parts[:i+1], PathSeparator)
			if _, ok := joined[alias]; !ok {
				joined[alias] = struct{}{}
				builder = builder.LeftJoin(fmt.Sprintf(
					"%s AS %s ON %s.%s = %s.%s",
					sqlutil.QuoteIdentifier(f.Source().Name()),
					sqlutil.QuoteIdentifier(alias),
					sqlutil.QuoteIdentifier(parentAlias),
					sqlutil.QuoteIdentifier(part),
					sqlutil.QuoteIdentifier(alias),
					sqlutil.QuoteIdentifier(f.Source().PrimaryKeyName()),
				))
			}
			parentAlias = alias
			cur = f.Child()
		}
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanPrefetch builds the indexed follow-up query for one prefetch path:
// all rows of table whose remoteColumn is in parentIDs. An empty parent set
// plans no query.
func PlanPrefetch(table string, columns []string, remoteColumn string, parentIDs []any) (SQLQuery, error) {
	if len(parentIDs) == 0 {
		return SQLQuery{}, nil
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = sqlutil.QuoteIdentifier(c)
	}
	query, args, err := sq.Select(cols...).
		From(sqlutil.QuoteIdentifier(table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(remoteColumn): parentIDs}).
		OrderBy(sqlutil.QuoteIdentifier(remoteColumn)).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}
