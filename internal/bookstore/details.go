package bookstore

import (
	"relation-preload/internal/source"
)

// BookDetails is the structured value stored in the books.details JSON
// column.
type BookDetails struct {
	Pages     int    `json:"pages"`
	Publisher string `json:"publisher"`
}

// DetailsOf decodes a book's stored details. Corrupt or absent stored data
// yields an invalid value rather than an error; reads must not break on bad
// at-rest data.
func DetailsOf(book source.Object) source.JSONValue[BookDetails] {
	var details source.JSONValue[BookDetails]
	raw, ok := book.Attribute("details")
	if !ok {
		return details
	}
	// Scan only fails on unsupported Go types, which map scanning never
	// produces for JSON columns.
	_ = details.Scan(raw)
	return details
}
