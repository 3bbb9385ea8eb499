// Package web exposes a JSON API over a session.Database: generic CRUD
// on registered tables plus the user service endpoints. It exists to
// show the data-access layer end to end; the library itself has no
// HTTP surface.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/tablekit/row"
	"github.com/artpar/tablekit/session"
	"github.com/artpar/tablekit/table"
)

// Handler provides the JSON API endpoints.
type Handler struct {
	db     *session.Database
	sys    *session.System
	logger zerolog.Logger
}

// New creates a handler over the base database scope. sys may be nil
// when no services are registered.
func New(db *session.Database, sys *session.System, logger zerolog.Logger) *Handler {
	return &Handler{db: db, sys: sys, logger: logger}
}

// Router builds the chi router for the API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.Health)
	r.Get("/tables", h.ListTables)
	r.Route("/tables/{table}", func(r chi.Router) {
		r.Get("/", h.ListRows)
		r.Post("/", h.InsertRow)
		r.Get("/{id}", h.GetRow)
		r.Put("/{id}", h.UpdateRow)
		r.Delete("/{id}", h.DeleteRow)
	})

	if h.sys != nil && h.sys.Has(UsersService) {
		r.Post("/users", h.Register)
		r.Post("/users/login", h.Login)
	}
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTables returns the registered member names.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": h.db.Names()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, table.ErrNotFound), errors.Is(err, session.ErrUnknownMember):
		status = http.StatusNotFound
	case errors.Is(err, row.ErrValueMissing), errors.Is(err, row.ErrValueNull):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrTransactionState):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
