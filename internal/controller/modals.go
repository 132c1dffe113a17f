package controller

import (
	"context"
	"fmt"
	"strings"

	"retodo/internal/todo"
)

// OpenEdit starts editing id. Unknown ids are ignored.
func (c *Controller) OpenEdit(id int64) bool {
	t, ok := c.find(id)
	if !ok {
		return false
	}
	c.mu.Lock()
	c.editing = &t
	c.mu.Unlock()
	return true
}

// Editing returns a copy of the task being edited.
func (c *Controller) Editing() (todo.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return todo.Task{}, false
	}
	return *c.editing, true
}

// SubmitEdit saves the edit form. A blank title keeps the editor open with
// a warning; otherwise the editor closes whatever the backend answers.
func (c *Controller) SubmitEdit(ctx context.Context, d todo.Draft, completed bool) error {
	editing, ok := c.Editing()
	if !ok {
		return nil
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		c.Notify(KindWarning, msgEmptyTitle)
		return ErrEmptyTitle
	}
	description := strings.TrimSpace(d.Description)
	priority := d.Priority
	if priority == "" {
		priority = editing.Priority
	}
	_, err := c.UpdateTodo(ctx, editing.ID, todo.Patch{
		Title:       &title,
		Description: &description,
		Priority:    &priority,
		Completed:   &completed,
	})
	c.CloseEdit()
	return err
}

func (c *Controller) CloseEdit() {
	c.mu.Lock()
	c.editing = nil
	c.mu.Unlock()
}

// OpenDelete asks for confirmation before deleting id. Unknown ids are
// ignored.
func (c *Controller) OpenDelete(id int64) bool {
	t, ok := c.find(id)
	if !ok {
		return false
	}
	c.mu.Lock()
	c.pendingDelete = id
	c.confirmMsg = fmt.Sprintf("Are you sure you want to delete %q?", t.Title)
	c.mu.Unlock()
	return true
}

// PendingDelete returns the id awaiting confirmation, or 0.
func (c *Controller) PendingDelete() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingDelete
}

// ConfirmDelete deletes the pending task and closes the confirmation.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	id := c.PendingDelete()
	var err error
	if id != 0 {
		err = c.DeleteTodo(ctx, id)
	}
	c.CloseConfirm()
	return err
}

func (c *Controller) CloseConfirm() {
	c.mu.Lock()
	c.pendingDelete = 0
	c.confirmMsg = ""
	c.mu.Unlock()
}

// Escape closes both overlays, whichever is open.
func (c *Controller) Escape() {
	c.CloseEdit()
	c.CloseConfirm()
}

// Locked reports whether an overlay is open.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing != nil || c.pendingDelete != 0
}
