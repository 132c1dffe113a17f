package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"retodo/internal/storage"
	"retodo/internal/todo"
)

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	store, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	var logs bytes.Buffer
	srv, err := New(store, log.New(&logs))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv, &logs
}

func doRequest(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to unmarshal %q: %v", w.Body.String(), err)
	}
	return out
}

func errorText(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to unmarshal error: %v", err)
	}
	if env.Success {
		t.Error("expected success=false")
	}
	return env.Error
}

func createTodo(t *testing.T, srv http.Handler, body string) todo.Task {
	t.Helper()
	w := doRequest(t, srv, "POST", "/api/todos", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var task todo.Task
	if err := json.Unmarshal(decode(t, w)["todo"], &task); err != nil {
		t.Fatalf("Failed to unmarshal todo: %v", err)
	}
	return task
}

func TestServer_API(t *testing.T) {
	srv, _ := newTestServer(t)

	first := createTodo(t, srv, `{"title":"  write tests ","description":"server","priority":"high"}`)
	if first.ID == 0 || first.Title != "write tests" || first.Priority != todo.PriorityHigh {
		t.Fatalf("unexpected todo %+v", first)
	}
	second := createTodo(t, srv, `{"title":"ship it","priority":"whenever"}`)
	if second.Priority != todo.PriorityMedium {
		t.Errorf("expected medium fallback, got %q", second.Priority)
	}

	t.Run("GET /api/todos", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/api/todos", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status OK, got %v", w.Code)
		}
		var tasks []todo.Task
		if err := json.Unmarshal(decode(t, w)["todos"], &tasks); err != nil {
			t.Fatalf("Failed to unmarshal todos: %v", err)
		}
		if len(tasks) != 2 || tasks[0].ID != second.ID {
			t.Errorf("expected newest first, got %+v", tasks)
		}
	})

	t.Run("GET /api/todos?priority=high", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/api/todos?priority=high", "")
		var tasks []todo.Task
		json.Unmarshal(decode(t, w)["todos"], &tasks)
		if len(tasks) != 1 || tasks[0].ID != first.ID {
			t.Errorf("unexpected filtered todos %+v", tasks)
		}
	})

	t.Run("PUT /api/todos/{id}", func(t *testing.T) {
		w := doRequest(t, srv, "PUT", "/api/todos/"+itoa(first.ID), `{"completed":true,"priority":"bogus"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status OK, got %v: %s", w.Code, w.Body.String())
		}
		var task todo.Task
		json.Unmarshal(decode(t, w)["todo"], &task)
		if !task.Completed || task.Priority != todo.PriorityHigh {
			t.Errorf("unexpected todo %+v", task)
		}
	})

	t.Run("GET /api/todos?completed=true", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/api/todos?completed=TRUE", "")
		var tasks []todo.Task
		json.Unmarshal(decode(t, w)["todos"], &tasks)
		if len(tasks) != 1 || tasks[0].ID != first.ID {
			t.Errorf("unexpected completed todos %+v", tasks)
		}
	})

	t.Run("GET /api/todos/stats", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/api/todos/stats", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status OK, got %v", w.Code)
		}
		var st todo.Stats
		if err := json.Unmarshal(decode(t, w)["stats"], &st); err != nil {
			t.Fatal(err)
		}
		if st.Total != 2 || st.Completed != 1 || st.Pending != 1 {
			t.Errorf("unexpected stats %+v", st)
		}
		if st.ByPriority[todo.PriorityHigh] != 1 || st.ByPriority[todo.PriorityMedium] != 1 {
			t.Errorf("unexpected by_priority %+v", st.ByPriority)
		}
	})

	t.Run("DELETE /api/todos/{id}", func(t *testing.T) {
		w := doRequest(t, srv, "DELETE", "/api/todos/"+itoa(second.ID), "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status OK, got %v", w.Code)
		}
		w = doRequest(t, srv, "DELETE", "/api/todos/"+itoa(second.ID), "")
		if w.Code != http.StatusNotFound || errorText(t, w) != "Todo not found" {
			t.Errorf("expected 404 Todo not found, got %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("GET /health", func(t *testing.T) {
		w := doRequest(t, srv, "GET", "/health", "")
		if w.Code != http.StatusOK {
			t.Errorf("Expected status OK, got %v", w.Code)
		}
	})
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	existing := createTodo(t, srv, `{"title":"exists"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
		msg    string
	}{
		{"missing title", "POST", "/api/todos", `{"description":"x"}`, 400, "Title is required"},
		{"blank title", "POST", "/api/todos", `{"title":"   "}`, 400, "Title is required"},
		{"not json", "POST", "/api/todos", `title=x`, 400, "Title is required"},
		{"wrong title type", "POST", "/api/todos", `{"title":5}`, 400, ""},
		{"empty update", "PUT", "/api/todos/" + itoa(existing.ID), `{}`, 400, "No data provided"},
		{"no update body", "PUT", "/api/todos/" + itoa(existing.ID), ``, 400, "No data provided"},
		{"blank title update", "PUT", "/api/todos/" + itoa(existing.ID), `{"title":"   "}`, 400, "Title is required"},
		{"wrong completed type", "PUT", "/api/todos/" + itoa(existing.ID), `{"completed":"yes"}`, 400, ""},
		{"update missing", "PUT", "/api/todos/9999", `{"completed":true}`, 404, "Todo not found"},
		{"bad id", "DELETE", "/api/todos/abc", ``, 404, "Todo not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, tt.method, tt.path, tt.body)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			msg := errorText(t, w)
			if tt.msg != "" && msg != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, msg)
			}
			if msg == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestServer_SchemaMessageNamesField(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, "POST", "/api/todos", `{"title":"ok","priority":3}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := errorText(t, w); !strings.Contains(msg, "priority") {
		t.Errorf("expected message to name the field, got %q", msg)
	}
}

func TestServer_LogsRequestID(t *testing.T) {
	srv, logs := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/todos", nil)
	req.Header.Set(todo.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if got := w.Header().Get(todo.RequestIDHeader); got != "req-123" {
		t.Errorf("expected request id echoed, got %q", got)
	}
	if !strings.Contains(logs.String(), "req-123") {
		t.Errorf("expected request id in logs, got %q", logs.String())
	}
}

func TestServer_WriteFailuresUseServerLogger(t *testing.T) {
	srv, logs := newTestServer(t)
	w := httptest.NewRecorder()
	srv.writeJSON(w, http.StatusOK, map[string]any{"bad": make(chan int)})
	if !strings.Contains(logs.String(), "write json") {
		t.Errorf("expected the encode failure in the server log, got %q", logs.String())
	}
}

func TestServer_StartShutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown before Start should be a no-op, got %v", err)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
