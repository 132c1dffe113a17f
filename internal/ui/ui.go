package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"retodo/internal/config"
	"retodo/internal/controller"
	"retodo/internal/todo"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
)

type (
	// loadedMsg ends the startup load.
	loadedMsg struct{}
	// changedMsg follows every action that went through the controller.
	changedMsg struct{ err error }
	// addedMsg is the result of submitting the add form.
	addedMsg struct{ err error }
	// noticeTickMsg fires when the oldest notice expires.
	noticeTickMsg struct{}
)

type Model struct {
	ctx     context.Context
	ctrl    *controller.Controller
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	add     form
	edit    form
	mode    mode
	cursor  int
	width   int
	loaded  bool
	// busy is set while a mutation is in flight; further submits are
	// ignored until its result arrives.
	busy    bool
	tickAt  time.Time
}

func New(ctx context.Context, ctrl *controller.Controller, cfg config.Config) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = hintStyle
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		keys:    newKeyMap(cfg.Keys),
		help:    help.New(),
		spinner: sp,
		add:     newForm(fieldCompleted),
		edit:    newForm(fieldCompleted + 1),
		mode:    modeList,
	}
}

// Run starts the terminal program and blocks until the user quits.
func Run(ctx context.Context, ctrl *controller.Controller, cfg config.Config) error {
	program := tea.NewProgram(New(ctx, ctrl, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		m.ctrl.Init(m.ctx)
		return loadedMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.add.setWidth(msg.Width)
		m.edit.setWidth(msg.Width)
		return m, nil
	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case loadedMsg:
		m.loaded = true
		m.clamp()
		return m, m.scheduleNotices()
	case changedMsg:
		m.busy = false
		if m.mode == modeEdit {
			if _, ok := m.ctrl.Editing(); !ok {
				m.mode = modeList
			}
		}
		m.clamp()
		return m, m.scheduleNotices()
	case addedMsg:
		m.busy = false
		if msg.err == nil {
			m.add.reset()
			m.mode = modeList
			m.cursor = 0
		}
		m.clamp()
		return m, m.scheduleNotices()
	case noticeTickMsg:
		m.tickAt = time.Time{}
		return m, m.scheduleNotices()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && (m.mode == modeList || msg.String() == "ctrl+c") {
		return m, tea.Quit
	}
	if m.ctrl.PendingDelete() != 0 {
		return m.updateConfirm(msg)
	}
	switch m.mode {
	case modeAdd:
		return m.updateAdd(msg)
	case modeEdit:
		return m.updateEdit(msg)
	}
	return m.updateList(msg)
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Actions resolve against what is on screen right now.
	tasks := m.ctrl.Filtered()
	selected, hasSelection := todo.Task{}, len(tasks) > 0
	if hasSelection {
		selected = tasks[clampCursor(m.cursor, len(tasks))]
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		m.cursor = clampCursor(m.cursor+1, len(tasks))
	case key.Matches(msg, m.keys.Up):
		m.cursor = clampCursor(m.cursor-1, len(tasks))
	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.add.setFocus(fieldTitle)
	case key.Matches(msg, m.keys.Toggle):
		if hasSelection && !m.busy {
			id := selected.ID
			cmd := m.mutate(func(ctx context.Context) error {
				return m.ctrl.ToggleComplete(ctx, id)
			})
			return m, cmd
		}
	case key.Matches(msg, m.keys.Edit):
		if hasSelection && m.ctrl.OpenEdit(selected.ID) {
			m.edit.load(selected)
			m.mode = modeEdit
		}
	case key.Matches(msg, m.keys.Delete):
		if hasSelection {
			m.ctrl.OpenDelete(selected.ID)
		}
	case key.Matches(msg, m.keys.StatusFilter):
		m.setStatus(nextStatus(m.ctrl.Snapshot().Status))
	case key.Matches(msg, m.keys.ShowAll):
		m.setStatus(todo.StatusAll)
	case key.Matches(msg, m.keys.ShowCompleted):
		m.setStatus(todo.StatusCompleted)
	case key.Matches(msg, m.keys.ShowPending):
		m.setStatus(todo.StatusPending)
	case key.Matches(msg, m.keys.PriorityFilter):
		m.ctrl.SetPriorityFilter(nextPriorityFilter(m.ctrl.Snapshot().Priority))
		m.cursor = 0
	case key.Matches(msg, m.keys.View):
		if m.ctrl.Snapshot().View == todo.ViewGrid {
			m.ctrl.SetView(todo.ViewList)
		} else {
			m.ctrl.SetView(todo.ViewGrid)
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg {
			if err := m.ctrl.LoadTodos(m.ctx); err == nil {
				_ = m.ctrl.LoadStats(m.ctx)
			}
			return loadedMsg{}
		}
	case key.Matches(msg, m.keys.Dismiss):
		if ns := m.ctrl.Notices(); len(ns) > 0 {
			m.ctrl.Dismiss(ns[len(ns)-1].ID)
		}
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Escape()
	}
	return m, nil
}

func (m *Model) setStatus(f todo.StatusFilter) {
	m.ctrl.SetStatusFilter(f)
	m.cursor = 0
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeList
		m.add.title.Blur()
		m.add.description.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		if m.busy {
			return m, nil
		}
		m.busy = true
		d := m.add.draft()
		return m, func() tea.Msg {
			_, err := m.ctrl.AddTodo(m.ctx, d)
			return addedMsg{err: err}
		}
	case key.Matches(msg, m.keys.NextField):
		m.add.next()
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		m.add.prev()
		return m, nil
	case key.Matches(msg, m.keys.Toggle) && m.add.cycle():
		return m, nil
	}
	return m, m.add.updateInput(msg)
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Escape()
		m.mode = modeList
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		if m.busy {
			return m, nil
		}
		d, completed := m.edit.draft(), m.edit.completed
		cmd := m.mutate(func(ctx context.Context) error {
			return m.ctrl.SubmitEdit(ctx, d, completed)
		})
		return m, cmd
	case key.Matches(msg, m.keys.NextField):
		m.edit.next()
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		m.edit.prev()
		return m, nil
	case key.Matches(msg, m.keys.Toggle) && m.edit.cycle():
		return m, nil
	}
	return m, m.edit.updateInput(msg)
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Yes):
		if m.busy {
			return m, nil
		}
		cmd := m.mutate(m.ctrl.ConfirmDelete)
		return m, cmd
	case key.Matches(msg, m.keys.No):
		m.ctrl.CloseConfirm()
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Escape()
		m.mode = modeList
	}
	return m, nil
}

// mutate marks the model busy and wraps a controller call as a command.
// Failures have already been reported as notices by the controller.
func (m *Model) mutate(fn func(context.Context) error) tea.Cmd {
	m.busy = true
	ctx := m.ctx
	return func() tea.Msg {
		return changedMsg{err: fn(ctx)}
	}
}

// scheduleNotices arranges a redraw when the oldest notice expires.
func (m *Model) scheduleNotices() tea.Cmd {
	next, ok := m.ctrl.NextExpiry()
	if !ok || next.Equal(m.tickAt) {
		return nil
	}
	m.tickAt = next
	return tea.Tick(time.Until(next)+10*time.Millisecond, func(time.Time) tea.Msg {
		return noticeTickMsg{}
	})
}

func (m *Model) clamp() {
	m.cursor = clampCursor(m.cursor, len(m.ctrl.Filtered()))
}

func (m Model) View() string {
	s := m.ctrl.Snapshot()
	if !m.loaded {
		s.Loading = true
	}

	var b strings.Builder
	if s.Loading {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(Render(s, m.width, m.cursor))

	switch {
	case m.mode == modeEdit && s.Editing != nil:
		b.WriteString("\n\n")
		b.WriteString(m.edit.view("Edit task"))
		b.WriteString("\n")
		b.WriteString(m.help.ShortHelpView(m.keys.formHelp()))
	case m.mode == modeAdd:
		b.WriteString("\n\n")
		b.WriteString(m.add.view("Add task"))
		b.WriteString("\n")
		b.WriteString(m.help.ShortHelpView(m.keys.formHelp()))
	case !s.Locked():
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView(m.keys.listHelp()))
	}
	b.WriteString("\n")
	return b.String()
}

func nextStatus(f todo.StatusFilter) todo.StatusFilter {
	for i, s := range todo.StatusFilters {
		if s == f {
			return todo.StatusFilters[(i+1)%len(todo.StatusFilters)]
		}
	}
	return todo.StatusAll
}

func nextPriorityFilter(f todo.PriorityFilter) todo.PriorityFilter {
	for i, p := range todo.PriorityFilters {
		if p == f {
			return todo.PriorityFilters[(i+1)%len(todo.PriorityFilters)]
		}
	}
	return todo.PriorityAll
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
