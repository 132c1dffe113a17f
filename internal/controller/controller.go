// Package controller owns the client-side todo state. Every mutation goes to
// the backend first; the local list only changes after a successful
// response, so it always mirrors what the server last reported.
package controller

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"retodo/internal/client"
	"retodo/internal/todo"
)

// Backend is the REST surface the controller mirrors. *client.Client
// implements it.
type Backend interface {
	ListTodos(ctx context.Context, q todo.ListQuery) ([]todo.Task, error)
	Stats(ctx context.Context) (todo.Stats, error)
	CreateTodo(ctx context.Context, d todo.Draft) (todo.Task, error)
	UpdateTodo(ctx context.Context, id int64, p todo.Patch) (todo.Task, error)
	DeleteTodo(ctx context.Context, id int64) error
}

var _ Backend = (*client.Client)(nil)

// ErrEmptyTitle is returned, without contacting the backend, when a task
// would be saved with a blank title.
var ErrEmptyTitle = errors.New("title is empty")

const (
	msgEmptyTitle = "Please enter a task title"
	msgAdded      = "Task added successfully!"
	msgUpdated    = "Task updated successfully!"
	msgDeleted    = "Task deleted successfully!"
)

type Options struct {
	Status   todo.StatusFilter
	Priority todo.PriorityFilter
	View     todo.ViewMode
	Logger   *log.Logger
	Now      func() time.Time
}

type Controller struct {
	backend Backend
	log     *log.Logger
	now     func() time.Time

	mu            sync.Mutex
	todos         []todo.Task
	stats         todo.Stats
	status        todo.StatusFilter
	priority      todo.PriorityFilter
	view          todo.ViewMode
	loading       bool
	editing       *todo.Task
	pendingDelete int64
	confirmMsg    string
	notices       []Notice
	nextNotice    int
}

func New(backend Backend, opts Options) *Controller {
	c := &Controller{
		backend:  backend,
		log:      opts.Logger,
		now:      opts.Now,
		todos:    []todo.Task{},
		status:   opts.Status,
		priority: opts.Priority,
		view:     opts.View,
	}
	if c.log == nil {
		c.log = log.New(io.Discard)
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.status == "" {
		c.status = todo.StatusAll
	}
	if c.priority == "" {
		c.priority = todo.PriorityAll
	}
	if c.view == "" {
		c.view = todo.ViewList
	}
	return c
}

// Init loads the task list and the counters behind a loading flag.
func (c *Controller) Init(ctx context.Context) {
	c.setLoading(true)
	defer c.setLoading(false)
	_ = c.LoadTodos(ctx)
	_ = c.LoadStats(ctx)
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

// call runs one backend round trip. A failure is reported once as an
// error notice and logged; the caller only decides whether to touch state.
func call[T any](c *Controller, op string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err != nil {
		c.Notify(KindError, errorMessage(err))
		c.log.Error("request failed", "op", op, "err", err)
	}
	return v, err
}

func errorMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	return err.Error()
}

func (c *Controller) LoadTodos(ctx context.Context) error {
	tasks, err := call(c, "load todos", func() ([]todo.Task, error) {
		return c.backend.ListTodos(ctx, todo.ListQuery{})
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.todos = append([]todo.Task{}, tasks...)
	c.mu.Unlock()
	return nil
}

func (c *Controller) LoadStats(ctx context.Context) error {
	st, err := call(c, "load stats", func() (todo.Stats, error) {
		return c.backend.Stats(ctx)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.stats = st
	c.mu.Unlock()
	return nil
}

// AddTodo creates a task and puts it at the front of the list. The caller
// resets its input form when err is nil.
func (c *Controller) AddTodo(ctx context.Context, d todo.Draft) (todo.Task, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Title == "" {
		c.Notify(KindWarning, msgEmptyTitle)
		return todo.Task{}, ErrEmptyTitle
	}
	if d.Priority == "" {
		d.Priority = todo.PriorityMedium
	}

	created, err := call(c, "add todo", func() (todo.Task, error) {
		return c.backend.CreateTodo(ctx, d)
	})
	if err != nil {
		return todo.Task{}, err
	}
	c.mu.Lock()
	c.todos = append([]todo.Task{created}, c.todos...)
	c.mu.Unlock()

	_ = c.LoadStats(ctx)
	c.Notify(KindSuccess, msgAdded)
	return created, nil
}

// UpdateTodo sends p and swaps in the returned record if the task is still
// in the local list.
func (c *Controller) UpdateTodo(ctx context.Context, id int64, p todo.Patch) (todo.Task, error) {
	updated, err := call(c, "update todo", func() (todo.Task, error) {
		return c.backend.UpdateTodo(ctx, id, p)
	})
	if err != nil {
		return todo.Task{}, err
	}
	c.mu.Lock()
	i := todo.IndexOf(c.todos, id)
	if i >= 0 {
		next := append([]todo.Task{}, c.todos...)
		next[i] = updated
		c.todos = next
	}
	c.mu.Unlock()

	if i >= 0 {
		_ = c.LoadStats(ctx)
	}
	c.Notify(KindSuccess, msgUpdated)
	return updated, nil
}

func (c *Controller) DeleteTodo(ctx context.Context, id int64) error {
	_, err := call(c, "delete todo", func() (struct{}, error) {
		return struct{}{}, c.backend.DeleteTodo(ctx, id)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	next := make([]todo.Task, 0, len(c.todos))
	for _, t := range c.todos {
		if t.ID != id {
			next = append(next, t)
		}
	}
	c.todos = next
	c.mu.Unlock()

	_ = c.LoadStats(ctx)
	c.Notify(KindSuccess, msgDeleted)
	return nil
}

// ToggleComplete flips the completed flag. Ids missing from the local list
// are ignored.
func (c *Controller) ToggleComplete(ctx context.Context, id int64) error {
	t, ok := c.find(id)
	if !ok {
		return nil
	}
	completed := !t.Completed
	_, err := c.UpdateTodo(ctx, id, todo.Patch{Completed: &completed})
	return err
}

func (c *Controller) find(id int64) (todo.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := todo.IndexOf(c.todos, id)
	if i < 0 {
		return todo.Task{}, false
	}
	return c.todos[i], true
}

func (c *Controller) SetStatusFilter(f todo.StatusFilter) {
	c.mu.Lock()
	c.status = f
	c.mu.Unlock()
}

func (c *Controller) SetPriorityFilter(f todo.PriorityFilter) {
	c.mu.Lock()
	c.priority = f
	c.mu.Unlock()
}

func (c *Controller) SetView(v todo.ViewMode) {
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
}

// Filtered returns the tasks the current filters let through.
func (c *Controller) Filtered() []todo.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return todo.Filter(c.todos, c.status, c.priority)
}

// Todos returns a copy of the full local list.
func (c *Controller) Todos() []todo.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]todo.Task{}, c.todos...)
}

func (c *Controller) Stats() todo.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Snapshot is everything the view needs, copied out under the lock.
type Snapshot struct {
	Todos          []todo.Task
	Total          int
	Stats          todo.Stats
	Status         todo.StatusFilter
	Priority       todo.PriorityFilter
	View           todo.ViewMode
	Loading        bool
	Editing        *todo.Task
	ConfirmOpen    bool
	ConfirmMessage string
	Notices        []Notice
}

// Locked reports whether an overlay holds the list still.
func (s Snapshot) Locked() bool {
	return s.Editing != nil || s.ConfirmOpen
}

func (c *Controller) Snapshot() Snapshot {
	notices := c.Notices()
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Todos:          todo.Filter(c.todos, c.status, c.priority),
		Total:          len(c.todos),
		Stats:          c.stats,
		Status:         c.status,
		Priority:       c.priority,
		View:           c.view,
		Loading:        c.loading,
		ConfirmOpen:    c.pendingDelete != 0,
		ConfirmMessage: c.confirmMsg,
		Notices:        notices,
	}
	if c.editing != nil {
		t := *c.editing
		s.Editing = &t
	}
	return s
}
