package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relation-preload/internal/bookstore"
	"relation-preload/internal/dbexec"
	"relation-preload/internal/logging"
	"relation-preload/internal/preload"
	"relation-preload/internal/resolve"
)

const testCityUUID = "0c2ad1f7-9a7e-4f7e-8b8a-111111111111"

func newTestServer(t *testing.T) (*server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolve.EnablePreloadLookup()
	t.Cleanup(resolve.DisablePreloadLookup)

	log := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	sources := bookstore.NewSources(dbexec.NewStandardExecutor(db))
	return newServer(log, sources, preload.Config{Enabled: true}), mock
}

func expectPreloadQueries(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT `id`, `name`, `active` FROM `authors` WHERE `active` = ? AND `id` IN (?,?)")).
		WithArgs(true, int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).
			AddRow(1, "Tolkien", true).
			AddRow(2, "Herbert", true))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT `uuid`, `name`, `active` FROM `cities` WHERE `active` = ? AND `uuid` IN (?)")).
		WithArgs(true, testCityUUID).
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "name", "active"}).
			AddRow(testCityUUID, "Oxford", true))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT `id`, `name` FROM `genres` WHERE `id` IN (?,?)")).
		WithArgs(int64(3), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(3, "Fantasy").
			AddRow(5, "Science Fiction"))
}

func TestHandleValidateBooks(t *testing.T) {
	srv, mock := newTestServer(t)
	expectPreloadQueries(mock)

	payload := `[
		{"name": "The Hobbit", "author": 1, "city": "` + testCityUUID + `", "genres": [3, 5]},
		{"name": "Dune", "author": 2, "city": "` + testCityUUID + `", "genres": [5]}
	]`

	req := httptest.NewRequest(http.MethodPost, "/books/validate", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// Exactly three batch queries, one per relation target; every relation
	// resolution must come out of the cache.
	require.NoError(t, mock.ExpectationsWereMet())

	var body struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)

	author, ok := body.Items[0]["author"].(map[string]any)
	require.True(t, ok, "author must render nested")
	assert.Equal(t, "Tolkien", author["name"])

	city, ok := body.Items[0]["city"].(map[string]any)
	require.True(t, ok, "city must render nested")
	assert.Equal(t, "Oxford", city["name"])

	genres, ok := body.Items[1]["genres"].([]any)
	require.True(t, ok, "genres must render as a list")
	require.Len(t, genres, 1)
	assert.Equal(t, "Science Fiction", genres[0].(map[string]any)["name"])
}

func TestHandleValidateBooksUnknownRelation(t *testing.T) {
	srv, mock := newTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT `id`, `name`, `active` FROM `authors` WHERE `active` = ? AND `id` IN (?)")).
		WithArgs(true, int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}))
	// The cache miss falls back to an individual fetch before failing.
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT `id`, `name`, `active` FROM `authors` WHERE `active` = ? AND `id` = ? LIMIT 1")).
		WithArgs(true, int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}))

	payload := `[{"name": "Ghost Book", "author": 404}]`
	req := httptest.NewRequest(http.MethodPost, "/books/validate", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "related object does not exist")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleValidateBooksInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/books/validate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBookPlan(t *testing.T) {
	srv, mock := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/books/plan", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// Planning never touches the database.
	require.NoError(t, mock.ExpectationsWereMet())

	var body struct {
		Select   []string `json:"select"`
		Prefetch []string `json:"prefetch"`
		EagerSQL string   `json:"eager_sql"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.ElementsMatch(t, []string{"author", "city"}, body.Select)
	assert.Equal(t, []string{"genres"}, body.Prefetch)
	assert.Contains(t, body.EagerSQL, "LEFT JOIN `authors` AS `author`")
	assert.Contains(t, body.EagerSQL, "LEFT JOIN `cities` AS `city`")
}
