package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"relation-preload/internal/bookstore"
	"relation-preload/internal/logging"
	"relation-preload/internal/planner"
	"relation-preload/internal/preload"
	"relation-preload/internal/resolve"
	"relation-preload/internal/schema"
)

// server validates book payloads through one preload pass per request and
// reports the planned query shape for the book tree.
type server struct {
	log        *logging.Logger
	preloadCfg preload.Config
	sources    *bookstore.Sources
}

func newServer(log *logging.Logger, sources *bookstore.Sources, preloadCfg preload.Config) *server {
	return &server{log: log, preloadCfg: preloadCfg, sources: sources}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /books/validate", s.handleValidateBooks)
	mux.HandleFunc("GET /books/plan", s.handleBookPlan)
	return mux
}

// handleValidateBooks runs the preload pass over the incoming payload and
// then validates each item, so relation fields resolve from the cache.
func (s *server) handleValidateBooks(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	// A fresh serializer per request: the cache it owns must not outlive
	// or be shared across requests.
	books := bookstore.BookSerializer(s.sources)

	manager, err := preload.Run(r.Context(), s.preloadCfg, books, payload)
	if err != nil {
		s.log.Error("preload pass failed", slog.String("error", err.Error()))
		http.Error(w, "failed to preload related objects", http.StatusInternalServerError)
		return
	}
	if manager != nil {
		defer books.UnbindCache()
	}

	validated, err := resolve.ValidatePayload(r.Context(), books, payload)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, resolve.ErrRelatedNotFound) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	out := make([]map[string]any, len(validated))
	for i, item := range validated {
		out[i] = renderValidated(books, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// handleBookPlan reports which relation paths of the book tree are
// eager-joined and which are batch-prefetched.
func (s *server) handleBookPlan(w http.ResponseWriter, r *http.Request) {
	books := bookstore.BookSerializer(s.sources)
	relations := planner.Plan(books)
	eager, err := planner.PlanEager(bookstore.TableFor("Book"), books, relations)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"select":    relations.Select,
		"prefetch":  relations.Prefetch,
		"eager_sql": eager.SQL,
	})
}

// renderValidated echoes validated items with resolved relations rendered
// through their representation children.
func renderValidated(s *schema.Serializer, item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for name, value := range item {
		f := s.Field(name)
		if f == nil {
			out[name] = value
			continue
		}
		out[name] = f.Represent(value)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
