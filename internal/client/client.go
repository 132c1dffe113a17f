// Package client talks to the todo REST backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"retodo/internal/todo"
)

const (
	// DefaultTimeout bounds a single round trip.
	DefaultTimeout = 10 * time.Second

	// FallbackMessage is used when a failed response carries no error text.
	FallbackMessage = "Something went wrong"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client is a JSON client for the /api/todos surface.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for serverURL (e.g. http://localhost:5000). The
// /api prefix is added here.
func New(serverURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithHTTPClient(serverURL, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(serverURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", serverURL)
	}
	base := strings.TrimRight(u.String(), "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return &Client{base: base, http: hc}, nil
}

type todosEnvelope struct {
	Todos []todo.Task `json:"todos"`
}

type todoEnvelope struct {
	Todo todo.Task `json:"todo"`
}

type statsEnvelope struct {
	Stats todo.Stats `json:"stats"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// ListTodos fetches the whole collection, optionally narrowed server side.
func (c *Client) ListTodos(ctx context.Context, q todo.ListQuery) ([]todo.Task, error) {
	endpoint := "/todos"
	params := url.Values{}
	if q.Completed != nil {
		params.Set("completed", strconv.FormatBool(*q.Completed))
	}
	if q.Priority != "" {
		params.Set("priority", string(q.Priority))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var env todosEnvelope
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &env); err != nil {
		return nil, err
	}
	if env.Todos == nil {
		env.Todos = []todo.Task{}
	}
	return env.Todos, nil
}

func (c *Client) Stats(ctx context.Context) (todo.Stats, error) {
	var env statsEnvelope
	if err := c.do(ctx, http.MethodGet, "/todos/stats", nil, &env); err != nil {
		return todo.Stats{}, err
	}
	return env.Stats, nil
}

func (c *Client) CreateTodo(ctx context.Context, d todo.Draft) (todo.Task, error) {
	var env todoEnvelope
	if err := c.do(ctx, http.MethodPost, "/todos", d, &env); err != nil {
		return todo.Task{}, err
	}
	return env.Todo, nil
}

func (c *Client) UpdateTodo(ctx context.Context, id int64, p todo.Patch) (todo.Task, error) {
	var env todoEnvelope
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/todos/%d", id), p, &env); err != nil {
		return todo.Task{}, err
	}
	return env.Todo, nil
}

func (c *Client) DeleteTodo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/todos/%d", id), nil, nil)
}

// do issues one request against endpoint (relative to /api). A JSON body is
// sent when body is non-nil; out, when non-nil, receives the decoded
// response. Non-2xx statuses come back as *APIError.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(todo.RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: FallbackMessage}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil && env.Error != "" {
			apiErr.Message = env.Error
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
