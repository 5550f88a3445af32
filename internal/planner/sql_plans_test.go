package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relation-preload/internal/schema"
)

func TestPlanEagerSingleJoin(t *testing.T) {
	books := schema.New("book",
		schema.Relation("author", src("authors"), schema.WithRepresentation(leaf("author"))),
	)

	planned, err := PlanEager("books", books, Plan(books))
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `books`.* FROM `books` "+
			"LEFT JOIN `authors` AS `author` ON `books`.`author` = `author`.`id`",
		planned.SQL)
	assert.Empty(t, planned.Args)
}

func TestPlanEagerChainJoinsEveryHop(t *testing.T) {
	publisher := leaf("publisher")
	author := schema.New("author",
		schema.Relation("publisher", src("publishers"), schema.WithRepresentation(publisher)),
	)
	books := schema.New("book",
		schema.Relation("author", src("authors"), schema.WithRepresentation(author)),
	)

	planned, err := PlanEager("books", books, Plan(books))
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `books`.* FROM `books` "+
			"LEFT JOIN `authors` AS `author` ON `books`.`author` = `author`.`id` "+
			"LEFT JOIN `publishers` AS `author__publisher` ON `author`.`publisher` = `author__publisher`.`id`",
		planned.SQL)
}

func TestPlanEagerRejectsNonRelationPath(t *testing.T) {
	books := schema.New("book", schema.Scalar("name"))
	_, err := PlanEager("books", books, Relations{Select: []string{"name"}})
	require.Error(t, err)
}

func TestPlanPrefetch(t *testing.T) {
	planned, err := PlanPrefetch("genres", []string{"id", "name", "book_id"}, "book_id",
		[]any{int64(1), int64(2)})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `id`, `name`, `book_id` FROM `genres` WHERE `book_id` IN (?,?) ORDER BY `book_id`",
		planned.SQL)
	assert.Equal(t, []any{int64(1), int64(2)}, planned.Args)
}

func TestPlanPrefetchEmptyParents(t *testing.T) {
	planned, err := PlanPrefetch("genres", []string{"id"}, "book_id", nil)
	require.NoError(t, err)
	assert.Empty(t, planned.SQL)
}
