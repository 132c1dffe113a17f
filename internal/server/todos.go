package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"retodo/internal/storage"
	"retodo/internal/todo"
)

func (s *Server) handleTodoList(w http.ResponseWriter, r *http.Request) {
	var q todo.ListQuery
	if v := r.URL.Query().Get("completed"); v != "" {
		completed := strings.EqualFold(v, "true")
		q.Completed = &completed
	}
	if v := r.URL.Query().Get("priority"); v != "" {
		q.Priority = todo.Priority(v)
	}
	tasks, err := s.store.List(r.Context(), q)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"todos":   tasks,
		"count":   len(tasks),
	})
}

func (s *Server) handleTodoCreate(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields["title"] == nil {
		s.writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if title, isString := fields["title"].(string); isString && strings.TrimSpace(title) == "" {
		s.writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if err := validateBody(s.schemas.create, raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var d todo.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	created, err := s.store.Create(r.Context(), d)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "todo": created})
}

func (s *Server) handleTodoUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		s.writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if err := validateBody(s.schemas.update, raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var p todo.Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	// An unknown priority is dropped rather than rejected.
	if p.Priority != nil && !p.Priority.Valid() {
		p.Priority = nil
	}
	updated, err := s.store.Update(r.Context(), id, p)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "todo": updated})
}

func (s *Server) handleTodoDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Todo not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Todo deleted successfully"})
}

func (s *Server) handleTodoStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusNotFound, "Todo not found")
		return 0, false
	}
	return id, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return bytes.TrimSpace(raw), true
}
