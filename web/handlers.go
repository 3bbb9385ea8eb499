package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/tablekit/row"
	"github.com/artpar/tablekit/table"
)

// reader is the read surface every table member offers.
type reader interface {
	Select(ctx context.Context, id int64) (row.Row, error)
	SelectAll(ctx context.Context) ([]row.Row, error)
	Count(ctx context.Context) (int64, error)
}

// writer is the write surface dynamic tables offer.
type writer interface {
	Insert(ctx context.Context, rec row.Row) (row.Row, error)
	Update(ctx context.Context, id int64, rec row.Row) (row.Row, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

func (h *Handler) member(name string) (any, error) {
	return h.db.Get(name)
}

func (h *Handler) readerFor(name string) (reader, error) {
	m, err := h.member(name)
	if err != nil {
		return nil, err
	}
	rd, ok := m.(reader)
	if !ok {
		return nil, fmt.Errorf("member %q is not readable", name)
	}
	return rd, nil
}

func (h *Handler) writerFor(name string) (writer, error) {
	m, err := h.member(name)
	if err != nil {
		return nil, err
	}
	wr, ok := m.(writer)
	if !ok {
		return nil, fmt.Errorf("member %q is not writable", name)
	}
	return wr, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func decodeRow(r *http.Request) (row.Row, error) {
	var rec row.Row
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return rec, nil
}

// ListRows returns every row of the table.
func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	rd, err := h.readerFor(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := rd.SelectAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := rd.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []row.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": count})
}

// GetRow returns a single row by id.
func (h *Handler) GetRow(w http.ResponseWriter, r *http.Request) {
	rd, err := h.readerFor(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rec, err := rd.Select(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "row not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// InsertRow writes one row inside a transaction scope.
func (h *Handler) InsertRow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	rec, err := decodeRow(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tx, err := h.db.Transaction(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := tx.Get(name)
	if err != nil {
		_ = tx.Rollback()
		writeError(w, err)
		return
	}
	wr, ok := m.(writer)
	if !ok {
		_ = tx.Rollback()
		writeError(w, fmt.Errorf("member %q is not writable", name))
		return
	}
	stored, err := wr.Insert(r.Context(), rec)
	if err != nil {
		_ = tx.Rollback()
		writeError(w, err)
		return
	}
	if err := tx.Commit(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// UpdateRow modifies one row by id.
func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	wr, err := h.writerFor(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rec, err := decodeRow(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	updated, err := wr.Update(r.Context(), id, rec)
	if err != nil {
		writeError(w, err)
		return
	}
	if updated == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "row not found"})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteRow removes one row by id.
func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	wr, err := h.writerFor(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	n, err := wr.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "row not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// ensure the table types satisfy the handler contracts.
var (
	_ reader = (*table.Table)(nil)
	_ reader = (*table.Dynamic)(nil)
	_ writer = (*table.Dynamic)(nil)
)
