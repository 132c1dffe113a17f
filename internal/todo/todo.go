// Package todo holds the task record and the view parameters shared by the
// client, the controller and the backend.
package todo

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParsePriority(v string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(v)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", v)
	}
	return p, nil
}

// Next cycles low -> medium -> high -> low.
func (p Priority) Next() Priority {
	for i, q := range Priorities {
		if q == p {
			return Priorities[(i+1)%len(Priorities)]
		}
	}
	return PriorityMedium
}

// Task mirrors the backend record. ID and CreatedAt are assigned by the
// backend and never change afterwards.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Draft is the payload for creating a task.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// Normalize trims text fields and falls back to medium for an unknown
// priority.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if !d.Priority.Valid() {
		d.Priority = PriorityMedium
	}
	return d
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Completed == nil
}

// Apply returns t with the patch fields copied over.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil && p.Priority.Valid() {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// RequestIDHeader carries a per-request id from the client to the backend
// logs.
const RequestIDHeader = "X-Request-ID"

type Stats struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Pending    int              `json:"pending"`
	ByPriority map[Priority]int `json:"by_priority,omitempty"`
}

// ListQuery narrows a backend listing. Zero value lists everything.
type ListQuery struct {
	Completed *bool
	Priority  Priority
}

type StatusFilter string

const (
	StatusAll       StatusFilter = "all"
	StatusCompleted StatusFilter = "completed"
	StatusPending   StatusFilter = "pending"
)

var StatusFilters = []StatusFilter{StatusAll, StatusCompleted, StatusPending}

func ParseStatusFilter(v string) (StatusFilter, error) {
	f := StatusFilter(strings.ToLower(strings.TrimSpace(v)))
	switch f {
	case StatusAll, StatusCompleted, StatusPending:
		return f, nil
	case "":
		return StatusAll, nil
	}
	return "", fmt.Errorf("unknown status filter %q", v)
}

func (f StatusFilter) match(t Task) bool {
	switch f {
	case StatusCompleted:
		return t.Completed
	case StatusPending:
		return !t.Completed
	}
	return true
}

// PriorityFilter is "all" or one of the priorities.
type PriorityFilter string

const PriorityAll PriorityFilter = "all"

var PriorityFilters = []PriorityFilter{PriorityAll, PriorityFilter(PriorityLow), PriorityFilter(PriorityMedium), PriorityFilter(PriorityHigh)}

func ParsePriorityFilter(v string) (PriorityFilter, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == string(PriorityAll) {
		return PriorityAll, nil
	}
	p, err := ParsePriority(v)
	if err != nil {
		return "", fmt.Errorf("unknown priority filter %q", v)
	}
	return PriorityFilter(p), nil
}

func (f PriorityFilter) match(t Task) bool {
	return f == PriorityAll || f == "" || Priority(f) == t.Priority
}

type ViewMode string

const (
	ViewList ViewMode = "list"
	ViewGrid ViewMode = "grid"
)

func ParseViewMode(v string) (ViewMode, error) {
	m := ViewMode(strings.ToLower(strings.TrimSpace(v)))
	switch m {
	case ViewList, ViewGrid:
		return m, nil
	case "":
		return ViewList, nil
	}
	return "", fmt.Errorf("unknown view mode %q", v)
}

// Filter applies the completion filter, then the priority filter. The
// result is a new slice in the input's order; tasks is not modified.
func Filter(tasks []Task, status StatusFilter, priority PriorityFilter) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if status.match(t) {
			out = append(out, t)
		}
	}
	filtered := make([]Task, 0, len(out))
	for _, t := range out {
		if priority.match(t) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// IndexOf returns the position of id in tasks, or -1.
func IndexOf(tasks []Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
