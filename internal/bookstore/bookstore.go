// Package bookstore is the demo domain wired through the preload subsystem:
// authors, cities, genres, and books referencing them. It mirrors the shape
// of a typical catalog service, with integer, uuid, and many-valued keys.
package bookstore

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jinzhu/inflection"

	"relation-preload/internal/dbexec"
	"relation-preload/internal/schema"
	"relation-preload/internal/source"
)

// TableFor derives the table name for a model name: pluralized snake case.
func TableFor(model string) string {
	return inflection.Plural(strings.ToLower(model))
}

// Sources holds the relation targets of the bookstore domain. Author and
// city sources are narrowed to active rows, the way per-request filter
// functions narrow them in the serving path.
type Sources struct {
	Authors *source.SQLSource
	Cities  *source.SQLSource
	Genres  *source.SQLSource
	Books   *source.SQLSource
}

// NewSources builds the bookstore sources over exec.
func NewSources(exec dbexec.QueryExecutor) *Sources {
	authors := source.NewSQLSource(exec, TableFor("Author"), "id", source.IdentifierInt,
		[]string{"id", "name", "active"})
	cities := source.NewSQLSource(exec, TableFor("City"), "uuid", source.IdentifierUUID,
		[]string{"uuid", "name", "active"})
	genres := source.NewSQLSource(exec, TableFor("Genre"), "id", source.IdentifierInt,
		[]string{"id", "name"})
	books := source.NewSQLSource(exec, TableFor("Book"), "uuid", source.IdentifierUUID,
		[]string{"uuid", "name", "author", "city", "details"})
	return &Sources{
		Authors: authors.WithFilter(sq.Eq{"`active`": true}),
		Cities:  cities.WithFilter(sq.Eq{"`active`": true}),
		Genres:  genres,
		Books:   books,
	}
}

// AuthorSerializer declares the nested author representation.
func AuthorSerializer() *schema.Serializer {
	return schema.New("author",
		schema.Scalar("id", schema.ReadOnly()),
		schema.Scalar("name"),
	)
}

// CitySerializer declares the nested city representation.
func CitySerializer() *schema.Serializer {
	return schema.New("city",
		schema.Scalar("uuid", schema.ReadOnly()),
		schema.Scalar("name"),
	)
}

// GenreSerializer declares the nested genre representation.
func GenreSerializer() *schema.Serializer {
	return schema.New("genre",
		schema.Scalar("id", schema.ReadOnly()),
		schema.Scalar("name"),
	)
}

// BookSerializer declares the writable book tree: scalar name, a to-one
// author and city rendered nested, and a to-many genres relation.
func BookSerializer(src *Sources) *schema.Serializer {
	return schema.New("book",
		schema.Scalar("uuid", schema.ReadOnly()),
		schema.Scalar("name"),
		schema.Relation("author", src.Authors, schema.WithRepresentation(AuthorSerializer())),
		schema.Relation("city", src.Cities, schema.WithRepresentation(CitySerializer())),
		schema.ManyRelation("genres", src.Genres, schema.WithRepresentation(GenreSerializer())),
	)
}
