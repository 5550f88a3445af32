package source

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relation-preload/internal/dbexec"
)

func newAuthorSource(t *testing.T) (*SQLSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src := NewSQLSource(dbexec.NewStandardExecutor(db), "authors", "id", IdentifierInt,
		[]string{"id", "name"})
	return src, mock
}

func TestSQLSourceSelectIn(t *testing.T) {
	src, mock := newAuthorSource(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name` FROM `authors` WHERE `id` IN (?,?)")).
		WithArgs(int64(3), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(3, "Tolkien").
			AddRow(5, "Herbert"))

	objects, err := src.SelectIn(context.Background(), []any{int64(3), int64(5)})
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, int64(3), objects[0].PrimaryKey())
	assert.Equal(t, int64(5), objects[1].PrimaryKey())

	name, ok := objects[0].Attribute("name")
	require.True(t, ok)
	assert.Equal(t, "Tolkien", name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourceSelectInEmpty(t *testing.T) {
	src, mock := newAuthorSource(t)

	objects, err := src.SelectIn(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, objects)
	// No query may be issued for an empty identifier set.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourceGet(t *testing.T) {
	src, mock := newAuthorSource(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name` FROM `authors` WHERE `id` = ? LIMIT 1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "Tolkien"))

	obj, err := src.Get(context.Background(), int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), obj.PrimaryKey())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourceGetNotFound(t *testing.T) {
	src, mock := newAuthorSource(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name` FROM `authors` WHERE `id` = ? LIMIT 1")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := src.Get(context.Background(), int64(404))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLSourceFilterState(t *testing.T) {
	src, _ := newAuthorSource(t)
	active := src.WithFilter(sq.Eq{"`active`": true})
	alsoActive := src.WithFilter(sq.Eq{"`active`": true})

	// Equal filters must agree, different filters must differ, and the
	// receiver must stay unfiltered.
	assert.Equal(t, active.FilterState(), alsoActive.FilterState())
	assert.NotEqual(t, src.FilterState(), active.FilterState())
	assert.NotContains(t, src.FilterState(), "active")
}

func TestSQLSourceFilteredQuery(t *testing.T) {
	src, mock := newAuthorSource(t)
	active := src.WithFilter(sq.Eq{"`active`": true})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name` FROM `authors` WHERE `active` = ? AND `id` IN (?)")).
		WithArgs(true, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "Tolkien"))

	objects, err := active.SelectIn(context.Background(), []any{int64(3)})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourceNormalizesScannedKey(t *testing.T) {
	src, mock := newAuthorSource(t)

	// mysql drivers commonly hand back numeric columns as []byte.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id`, `name` FROM `authors` WHERE `id` IN (?)")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow([]byte("3"), "Tolkien"))

	objects, err := src.SelectIn(context.Background(), []any{int64(3)})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, int64(3), objects[0].PrimaryKey())
}
