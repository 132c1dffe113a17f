package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"retodo/internal/todo"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldPriority
	fieldCompleted
)

var (
	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Width(13).
			Foreground(lipgloss.Color("245"))

	focusedLabelStyle = labelStyle.
				Foreground(lipgloss.Color("86")).
				Bold(true)
)

// form holds the add and edit inputs. The edit form has one extra field
// for the completed flag.
type form struct {
	title       textinput.Model
	description textarea.Model
	priority    todo.Priority
	completed   bool
	focus       int
	fields      int
}

func newForm(fields int) form {
	ti := textinput.New()
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 200
	ti.Width = 40

	ta := textarea.New()
	ta.Placeholder = "Description (optional)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.SetWidth(40)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	f := form{
		title:       ti,
		description: ta,
		priority:    todo.PriorityMedium,
		fields:      fields,
	}
	f.setFocus(fieldTitle)
	return f
}

func (f *form) reset() {
	f.title.SetValue("")
	f.description.SetValue("")
	f.priority = todo.PriorityMedium
	f.completed = false
	f.setFocus(fieldTitle)
}

func (f *form) load(t todo.Task) {
	f.title.SetValue(t.Title)
	f.title.CursorEnd()
	f.description.SetValue(t.Description)
	f.priority = t.Priority
	if !f.priority.Valid() {
		f.priority = todo.PriorityMedium
	}
	f.completed = t.Completed
	f.setFocus(fieldTitle)
}

func (f *form) setWidth(w int) {
	w = max(w-20, 20)
	f.title.Width = w
	f.description.SetWidth(w)
}

func (f *form) setFocus(i int) {
	f.focus = wrapIndex(i, f.fields)
	f.title.Blur()
	f.description.Blur()
	switch f.focus {
	case fieldTitle:
		f.title.Focus()
	case fieldDescription:
		f.description.Focus()
	}
}

func (f *form) next() { f.setFocus(f.focus + 1) }
func (f *form) prev() { f.setFocus(f.focus - 1) }

// cycle changes the value of a choice field: the priority or the completed
// flag. It reports false when the focused field takes text instead.
func (f *form) cycle() bool {
	switch f.focus {
	case fieldPriority:
		f.priority = f.priority.Next()
		return true
	case fieldCompleted:
		f.completed = !f.completed
		return true
	}
	return false
}

func (f *form) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	}
	return cmd
}

func (f form) draft() todo.Draft {
	return todo.Draft{
		Title:       f.title.Value(),
		Description: f.description.Value(),
		Priority:    f.priority,
	}
}

func (f form) view(heading string) string {
	label := func(i int, name string) string {
		if f.focus == i {
			return focusedLabelStyle.Render(name)
		}
		return labelStyle.Render(name)
	}
	rows := []string{
		titleStyle.Render(heading),
		"",
		label(fieldTitle, "Title") + f.title.View(),
		lipgloss.JoinHorizontal(lipgloss.Top, label(fieldDescription, "Description"), f.description.View()),
		label(fieldPriority, "Priority") + priorityBadge(f.priority) + metaStyle.Render("  (space to change)"),
	}
	if f.fields > fieldCompleted {
		rows = append(rows, label(fieldCompleted, "Completed")+fmt.Sprintf("[%s]", checkMark(f.completed)))
	}
	return formStyle.Render(strings.Join(rows, "\n"))
}

func checkMark(done bool) string {
	if done {
		return "x"
	}
	return " "
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
