package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"retodo/internal/controller"
	"retodo/internal/todo"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	counterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	counterValueStyle = lipgloss.NewStyle().
				Bold(true)

	activeFilterStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86")).
				Underline(true)

	filterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedCardStyle = cardStyle.
				BorderForeground(lipgloss.Color("86"))

	cardTitleStyle = lipgloss.NewStyle().Bold(true)

	doneTitleStyle = lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("241"))

	descriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(1, 2)

	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2)

	badgeStyles = map[todo.Priority]lipgloss.Style{
		todo.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")).Padding(0, 1),
		todo.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1),
		todo.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("196")).Padding(0, 1),
	}

	noticeStyles = map[controller.NoticeKind]lipgloss.Style{
		controller.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		controller.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		controller.KindWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		controller.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}

	noticeIcons = map[controller.NoticeKind]string{
		controller.KindSuccess: "✓",
		controller.KindError:   "✗",
		controller.KindWarning: "!",
		controller.KindInfo:    "i",
	}
)

const (
	minCardWidth = 24
	gridColumns  = 2
	dateLayout   = "2006-01-02"
)

// now is swapped out by tests.
var now = time.Now

// Render draws the board for s. cursor indexes s.Todos and marks the
// selected card; width is the terminal width, 0 when unknown.
func Render(s controller.Snapshot, width, cursor int) string {
	var b strings.Builder
	b.WriteString(renderHeader(s.Stats))
	b.WriteString("\n")
	b.WriteString(renderFilterBar(s))
	b.WriteString("\n\n")

	switch {
	case s.Loading:
		b.WriteString("Loading tasks...")
	case len(s.Todos) == 0:
		b.WriteString(renderEmpty(s.Total))
	case s.View == todo.ViewGrid:
		b.WriteString(renderGrid(s.Todos, width, cursor, s.Locked()))
	default:
		b.WriteString(renderList(s.Todos, width, cursor, s.Locked()))
	}

	if s.ConfirmOpen {
		b.WriteString("\n\n")
		b.WriteString(renderConfirm(s.ConfirmMessage))
	}
	if len(s.Notices) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderNotices(s.Notices))
	}
	return b.String()
}

func renderHeader(st todo.Stats) string {
	counter := func(label string, n int) string {
		return counterStyle.Render(label+" ") + counterValueStyle.Render(fmt.Sprint(n))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("Todos"),
		"   ",
		counter("Total", st.Total),
		"  ",
		counter("Completed", st.Completed),
		"  ",
		counter("Pending", st.Pending),
	)
}

func renderFilterBar(s controller.Snapshot) string {
	var b strings.Builder
	b.WriteString(filterStyle.Render("Status:"))
	for _, f := range todo.StatusFilters {
		b.WriteString(" ")
		b.WriteString(filterOption(string(f), f == s.Status))
	}
	b.WriteString(filterStyle.Render("   Priority:"))
	for _, f := range todo.PriorityFilters {
		b.WriteString(" ")
		b.WriteString(filterOption(string(f), f == s.Priority))
	}
	b.WriteString(filterStyle.Render("   View: "))
	b.WriteString(activeFilterStyle.Render(string(s.View)))
	return b.String()
}

func filterOption(name string, active bool) string {
	if active {
		return activeFilterStyle.Render(name)
	}
	return filterStyle.Render(name)
}

func renderEmpty(total int) string {
	if total == 0 {
		return emptyStyle.Render("No tasks yet. Add one to get started.")
	}
	return emptyStyle.Render("No tasks match the current filters.")
}

func renderList(tasks []todo.Task, width, cursor int, locked bool) string {
	w := width - 2
	if w < minCardWidth {
		w = 0
	}
	cards := make([]string, len(tasks))
	for i, t := range tasks {
		cards[i] = renderCard(t, w, i == cursor && !locked)
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func renderGrid(tasks []todo.Task, width, cursor int, locked bool) string {
	w := width/gridColumns - 2
	if w < minCardWidth {
		w = minCardWidth
	}
	var rows []string
	for start := 0; start < len(tasks); start += gridColumns {
		end := min(start+gridColumns, len(tasks))
		row := make([]string, 0, gridColumns)
		for i := start; i < end; i++ {
			row = append(row, renderCard(tasks[i], w, i == cursor && !locked))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(t todo.Task, width int, selected bool) string {
	title := sanitize(t.Title)
	if t.Completed {
		title = doneTitleStyle.Render("✓ " + title)
	} else {
		title = cardTitleStyle.Render(title)
	}
	lines := []string{title}
	if desc := sanitize(t.Description); desc != "" {
		lines = append(lines, descriptionStyle.Render(desc))
	}
	lines = append(lines, priorityBadge(t.Priority)+"  "+metaStyle.Render(createdLabel(t.CreatedAt)))
	if selected {
		toggle := "complete"
		if t.Completed {
			toggle = "reopen"
		}
		lines = append(lines, hintStyle.Render(toggle+" · edit · delete"))
	}

	style := cardStyle
	if selected {
		style = selectedCardStyle
	}
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func priorityBadge(p todo.Priority) string {
	style, ok := badgeStyles[p]
	if !ok {
		style = badgeStyles[todo.PriorityMedium]
	}
	return style.Render(sanitize(string(p)) + " priority")
}

func createdLabel(created time.Time) string {
	if created.IsZero() {
		return "Created: unknown"
	}
	return fmt.Sprintf("Created: %s (%s)",
		created.Local().Format(dateLayout),
		humanize.RelTime(created, now(), "ago", "from now"))
}

func renderConfirm(msg string) string {
	body := sanitize(msg) + "\n\n" + hintStyle.Render("y/enter delete · n cancel · esc close")
	return overlayStyle.Render(body)
}

func renderNotices(ns []controller.Notice) string {
	lines := make([]string, len(ns))
	for i, n := range ns {
		style, ok := noticeStyles[n.Kind]
		if !ok {
			style = noticeStyles[controller.KindInfo]
		}
		icon := noticeIcons[n.Kind]
		if icon == "" {
			icon = noticeIcons[controller.KindInfo]
		}
		lines[i] = style.Render(icon + " " + sanitize(n.Message))
	}
	return strings.Join(lines, "\n")
}

// sanitize strips terminal escape sequences and control characters from
// user text so it renders as plain characters. Line breaks become spaces.
func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}
