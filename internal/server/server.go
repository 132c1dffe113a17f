// Package server exposes the todo store over the /api/todos REST surface.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"retodo/internal/storage"
	"retodo/internal/todo"
)

const maxBodyBytes = 1 << 20

type Server struct {
	store   storage.Store
	log     *log.Logger
	schemas schemas
	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server
}

func New(store storage.Store, logger *log.Logger) (*Server, error) {
	sch, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	s := &Server{
		store:   store,
		log:     logger,
		schemas: sch,
		mux:     http.NewServeMux(),
	}
	s.routes()
	s.handler = s.logRequests(s.mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/todos", s.handleTodoList)
	s.mux.HandleFunc("POST /api/todos", s.handleTodoCreate)
	s.mux.HandleFunc("GET /api/todos/stats", s.handleTodoStats)
	s.mux.HandleFunc("PUT /api/todos/{id}", s.handleTodoUpdate)
	s.mux.HandleFunc("DELETE /api/todos/{id}", s.handleTodoDelete)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs one line per request, keyed by the caller's request id
// when it sent one.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(todo.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(todo.RequestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		fields := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start), "request_id", id}
		switch {
		case rec.status >= 500:
			s.log.Error("request", fields...)
		case rec.status >= 400:
			s.log.Warn("request", fields...)
		default:
			s.log.Info("request", fields...)
		}
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write json", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
