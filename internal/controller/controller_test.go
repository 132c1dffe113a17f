package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"retodo/internal/client"
	"retodo/internal/todo"
)

// fakeBackend is an in-memory Backend with per-method error injection and a
// record of every update payload.
type fakeBackend struct {
	mu     sync.Mutex
	tasks  []todo.Task
	nextID int64
	calls  int

	ListErr   error
	StatsErr  error
	CreateErr error
	UpdateErr error
	DeleteErr error

	updates []todo.Patch
}

func newFakeBackend(tasks ...todo.Task) *fakeBackend {
	f := &fakeBackend{nextID: 100}
	f.tasks = append(f.tasks, tasks...)
	return f
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) ListTodos(ctx context.Context, q todo.ListQuery) ([]todo.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]todo.Task{}, f.tasks...), nil
}

func (f *fakeBackend) Stats(ctx context.Context) (todo.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.StatsErr != nil {
		return todo.Stats{}, f.StatsErr
	}
	st := todo.Stats{Total: len(f.tasks)}
	for _, t := range f.tasks {
		if t.Completed {
			st.Completed++
		}
	}
	st.Pending = st.Total - st.Completed
	return st, nil
}

func (f *fakeBackend) CreateTodo(ctx context.Context, d todo.Draft) (todo.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.CreateErr != nil {
		return todo.Task{}, f.CreateErr
	}
	f.nextID++
	t := todo.Task{ID: f.nextID, Title: d.Title, Description: d.Description, Priority: d.Priority, CreatedAt: time.Now()}
	f.tasks = append([]todo.Task{t}, f.tasks...)
	return t, nil
}

func (f *fakeBackend) UpdateTodo(ctx context.Context, id int64, p todo.Patch) (todo.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.updates = append(f.updates, p)
	if f.UpdateErr != nil {
		return todo.Task{}, f.UpdateErr
	}
	i := todo.IndexOf(f.tasks, id)
	if i < 0 {
		return todo.Task{}, &client.APIError{Status: 404, Message: "Todo not found"}
	}
	f.tasks[i] = p.Apply(f.tasks[i])
	return f.tasks[i], nil
}

func (f *fakeBackend) DeleteTodo(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	i := todo.IndexOf(f.tasks, id)
	if i < 0 {
		return &client.APIError{Status: 404, Message: "Todo not found"}
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

func seedTasks() []todo.Task {
	return []todo.Task{
		{ID: 1, Title: "write report", Priority: todo.PriorityHigh, Completed: true},
		{ID: 2, Title: "water plants", Priority: todo.PriorityLow},
		{ID: 3, Title: "call bank", Priority: todo.PriorityHigh},
		{ID: 4, Title: "pay rent", Priority: todo.PriorityHigh, Completed: true},
	}
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time           { return c.t }
func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController(t *testing.T, b *fakeBackend) (*Controller, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	c := New(b, Options{Now: clock.Now})
	c.Init(context.Background())
	return c, clock
}

func lastNotice(t *testing.T, c *Controller) Notice {
	t.Helper()
	ns := c.Notices()
	if len(ns) == 0 {
		t.Fatal("expected a notice")
	}
	return ns[len(ns)-1]
}

func TestInitLoadsTodosAndStats(t *testing.T) {
	c, _ := newTestController(t, newFakeBackend(seedTasks()...))
	snap := c.Snapshot()
	if snap.Loading {
		t.Error("loading flag should be cleared after Init")
	}
	if len(snap.Todos) != 4 {
		t.Errorf("expected 4 todos, got %d", len(snap.Todos))
	}
	if snap.Stats.Total != 4 || snap.Stats.Completed != 2 || snap.Stats.Pending != 2 {
		t.Errorf("unexpected stats %+v", snap.Stats)
	}
}

func TestInitFailureShowsOneNoticePerRequest(t *testing.T) {
	b := newFakeBackend()
	b.ListErr = &client.APIError{Status: 500, Message: "database is locked"}
	c, _ := newTestController(t, b)
	ns := c.Notices()
	if len(ns) != 1 {
		t.Fatalf("expected exactly one notice, got %+v", ns)
	}
	if ns[0].Kind != KindError || ns[0].Message != "database is locked" {
		t.Errorf("unexpected notice %+v", ns[0])
	}
}

func TestAddBlankTitleMakesNoCall(t *testing.T) {
	b := newFakeBackend(seedTasks()...)
	c, _ := newTestController(t, b)
	before := b.Calls()

	_, err := c.AddTodo(context.Background(), todo.Draft{Title: "   ", Priority: todo.PriorityLow})
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if b.Calls() != before {
		t.Errorf("expected no backend call, got %d", b.Calls()-before)
	}
	n := lastNotice(t, c)
	if n.Kind != KindWarning || n.Message != "Please enter a task title" {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestAddPrependsAndRefreshesStats(t *testing.T) {
	c, _ := newTestController(t, newFakeBackend(seedTasks()...))
	before := c.Stats().Total

	created, err := c.AddTodo(context.Background(), todo.Draft{Title: " buy milk ", Priority: todo.PriorityMedium})
	if err != nil {
		t.Fatalf("AddTodo failed: %v", err)
	}
	if created.Title != "buy milk" {
		t.Errorf("expected trimmed title, got %q", created.Title)
	}
	list := c.Filtered()
	if list[0].ID != created.ID {
		t.Errorf("expected new todo at index 0, got %+v", list[0])
	}
	if got := c.Stats().Total; got != before+1 {
		t.Errorf("expected total %d, got %d", before+1, got)
	}
	if n := lastNotice(t, c); n.Kind != KindSuccess || n.Message != "Task added successfully!" {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestAddFailureLeavesListUnchanged(t *testing.T) {
	b := newFakeBackend(seedTasks()...)
	c, _ := newTestController(t, b)
	b.CreateErr = &client.APIError{Status: 400, Message: "Title is required"}

	if _, err := c.AddTodo(context.Background(), todo.Draft{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if len(c.Todos()) != 4 {
		t.Errorf("expected 4 todos, got %d", len(c.Todos()))
	}
	ns := c.Notices()
	if len(ns) != 1 || ns[0].Message != "Title is required" {
		t.Errorf("expected a single error notice, got %+v", ns)
	}
}

func TestFilterCompletedHighKeepsOrder(t *testing.T) {
	c, _ := newTestController(t, newFakeBackend(seedTasks()...))
	c.SetStatusFilter(todo.StatusCompleted)
	c.SetPriorityFilter(todo.PriorityFilter(todo.PriorityHigh))
	got := c.Filtered()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 4 {
		t.Errorf("unexpected filtered list %+v", got)
	}
	if len(c.Todos()) != 4 {
		t.Error("filtering must not drop tasks from the local list")
	}
}

func TestToggleTwiceRestoresValue(t *testing.T) {
	b := newFakeBackend(seedTasks()...)
	c, _ := newTestController(t, b)
	ctx := context.Background()

	if err := c.ToggleComplete(ctx, 2); err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	if err := c.ToggleComplete(ctx, 2); err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if len(b.updates) != 2 {
		t.Fatalf("expected 2 update calls, got %d", len(b.updates))
	}
	if *b.updates[0].Completed != true || *b.updates[1].Completed != false {
		t.Errorf("expected opposite payloads, got %v then %v", *b.updates[0].Completed, *b.updates[1].Completed)
	}
	task, _ := c.find(2)
	if task.Completed {
		t.Error("expected task back to pending")
	}
}

func TestToggleUnknownIDIsNoop(t *testing.T) {
	b := newFakeBackend(seedTasks()...)
	c, _ := newTestController(t, b)
	before := b.Calls()
	if err := c.ToggleComplete(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Calls() != before {
		t.Error("expected no backend call")
	}
}

func TestFailedDeleteKeepsTask(t *testing.T) {
	b := newFakeBackend(seedTasks()...)
	c, _ := newTestController(t, b)
	b.DeleteErr = &client.APIError{Status: 500, Message: "disk full"}

	if !c.OpenDelete(3) {
		t.Fatal("expected delete confirmation to open")
	}
	if err := c.ConfirmDelete(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if todo.IndexOf(c.Filtered(), 3) < 0 {
		t.Error("task should still be rendered after a failed delete")
	}
	if c.PendingDelete() != 0 {
		t.Error("confirmation should close after the attempt")
	}
	if n := lastNotice(t, c); n.Kind != KindError || n.Message != "disk full" {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestDeleteRemovesTask(t *testing.T) {
	c, _ := newTestController(t, newFakeBackend(seedTasks()...))
	c.OpenDelete(2)
	snap := c.Snapshot()
	if !snap.ConfirmOpen || snap.ConfirmMessage != `Are you sure you want to delete "water plants"?` {
		t.Errorf("unexpected confirmation state %+v", snap)
	}
	if err := c.ConfirmDelete(context.Background()); err != nil {
		t.Fatalf("ConfirmDelete failed: %v", err)
	}
	if todo.IndexOf(c.Todos(), 2) >= 0 {
		t.Error("task should be gone")
	}
	if c.Stats().Total != 3 {
		t.Errorf("expected total 3, got %d", c.Stats().Total)
	}
}

func TestEscapeClosesBothOverlays(t *testing.T) {
	c, _ := newTestController(t, newFakeBackend(seedTasks()...))

	c.OpenEdit(1)
	c.Escape()
	if _, ok := c.Editing(); ok || c.Locked() {
		t.Error("escape should close the editor")
	}

	c.OpenDelete(2)
	c.Escape()
	if c.PendingDelete() != 0 || c.Locked() {
		t.Error("escape should close the delete confirmation")
	}

	c.OpenEdit(1)
	c.OpenDelete(2)
	c.Escape()
	snap := c.Snapshot()
	if snap.Editing != nil || snap.ConfirmOpen || snap.Locked() {
		t.Errorf("escape should clear both overlays, got %+v", snap)
	}
}

func TestOpenEditUnknownIDIsNoop(t *testing.T) {
	c, _ := newTestController(t, newFakeBackend(seedTasks()...))
	if c.OpenEdit(99) || c.OpenDelete(99) {
		t.Error("unknown ids should not open overlays")
	}
	if c.Locked() {
		t.Error("no overlay should be open")
	}
}

func TestSubmitEdit(t *testing.T) {
	b := newFakeBackend(seedTasks()...)
	c, _ := newTestController(t, b)
	ctx := context.Background()
	c.OpenEdit(2)

	if err := c.SubmitEdit(ctx, todo.Draft{Title: " "}, false); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if _, ok := c.Editing(); !ok {
		t.Fatal("editor should stay open after a blank title")
	}

	err := c.SubmitEdit(ctx, todo.Draft{Title: "water all plants", Description: "balcony", Priority: todo.PriorityHigh}, true)
	if err != nil {
		t.Fatalf("SubmitEdit failed: %v", err)
	}
	if _, ok := c.Editing(); ok {
		t.Error("editor should close after saving")
	}
	task, _ := c.find(2)
	if task.Title != "water all plants" || task.Description != "balcony" || task.Priority != todo.PriorityHigh || !task.Completed {
		t.Errorf("unexpected task after edit %+v", task)
	}
}

func TestSubmitEditFailureClosesEditorAndKeepsTask(t *testing.T) {
	b := newFakeBackend(seedTasks()...)
	c, _ := newTestController(t, b)
	b.UpdateErr = errors.New("connection refused")
	c.OpenEdit(2)
	if err := c.SubmitEdit(context.Background(), todo.Draft{Title: "changed"}, false); err == nil {
		t.Fatal("expected error")
	}
	task, _ := c.find(2)
	if task.Title != "water plants" {
		t.Errorf("task should be unchanged, got %q", task.Title)
	}
	if c.Locked() {
		t.Error("editor should close after the attempt")
	}
	if n := lastNotice(t, c); n.Message != "connection refused" {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestNoticesExpire(t *testing.T) {
	c, clock := newTestController(t, newFakeBackend())
	c.Notify(KindInfo, "first")
	clock.Advance(2 * time.Second)
	c.Notify(KindInfo, "second")

	if next, ok := c.NextExpiry(); !ok || !next.Equal(clock.t.Add(2*time.Second)) {
		t.Errorf("unexpected next expiry %v", next)
	}

	clock.Advance(2 * time.Second)
	ns := c.Notices()
	if len(ns) != 1 || ns[0].Message != "second" {
		t.Fatalf("expected only the second notice, got %+v", ns)
	}
	clock.Advance(2 * time.Second)
	if ns := c.Notices(); len(ns) != 0 {
		t.Errorf("expected no notices, got %+v", ns)
	}
	if _, ok := c.NextExpiry(); ok {
		t.Error("expected no pending expiry")
	}
}

func TestNextExpirySkipsExpiredNotices(t *testing.T) {
	c, clock := newTestController(t, newFakeBackend())
	c.Notify(KindInfo, "first")
	clock.Advance(2 * time.Second)
	second := c.Notify(KindInfo, "second")

	// Nothing has pruned the first notice yet.
	clock.Advance(3 * time.Second)
	next, ok := c.NextExpiry()
	if !ok || !next.Equal(second.Expires) {
		t.Errorf("expected the second notice's expiry %v, got %v ok=%v", second.Expires, next, ok)
	}

	clock.Advance(NoticeLifetime)
	if _, ok := c.NextExpiry(); ok {
		t.Error("expected no pending expiry once every notice has lapsed")
	}
}

func TestDismiss(t *testing.T) {
	c, _ := newTestController(t, newFakeBackend())
	a := c.Notify(KindInfo, "a")
	c.Notify(KindInfo, "b")
	c.Dismiss(a.ID)
	ns := c.Notices()
	if len(ns) != 1 || ns[0].Message != "b" {
		t.Errorf("unexpected notices %+v", ns)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := errorMessage(context.DeadlineExceeded); got != "Request timed out" {
		t.Errorf("unexpected message %q", got)
	}
	if got := errorMessage(&client.APIError{Message: "nope"}); got != "nope" {
		t.Errorf("unexpected message %q", got)
	}
}
