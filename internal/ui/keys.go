package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"retodo/internal/config"
)

type keyMap struct {
	Quit           key.Binding
	Add            key.Binding
	Up             key.Binding
	Down           key.Binding
	Toggle         key.Binding
	Delete         key.Binding
	Edit           key.Binding
	Confirm        key.Binding
	Cancel         key.Binding
	NextField      key.Binding
	PrevField      key.Binding
	StatusFilter   key.Binding
	ShowAll        key.Binding
	ShowCompleted  key.Binding
	ShowPending    key.Binding
	PriorityFilter key.Binding
	View           key.Binding
	Refresh        key.Binding
	Dismiss        key.Binding
	Yes            key.Binding
	No             key.Binding
}

func newKeyMap(k config.Keymap) keyMap {
	return keyMap{
		Quit:           key.NewBinding(key.WithKeys(k.Quit, "ctrl+c"), key.WithHelp(k.Quit, "quit")),
		Add:            key.NewBinding(key.WithKeys(k.Add), key.WithHelp(k.Add, "add")),
		Up:             key.NewBinding(key.WithKeys(k.Up, "up"), key.WithHelp(k.Up+"/↑", "up")),
		Down:           key.NewBinding(key.WithKeys(k.Down, "down"), key.WithHelp(k.Down+"/↓", "down")),
		Toggle:         key.NewBinding(key.WithKeys(k.Toggle), key.WithHelp(keyLabel(k.Toggle), "toggle")),
		Delete:         key.NewBinding(key.WithKeys(k.Delete), key.WithHelp(k.Delete, "delete")),
		Edit:           key.NewBinding(key.WithKeys(k.Edit), key.WithHelp(k.Edit, "edit")),
		Confirm:        key.NewBinding(key.WithKeys(k.Confirm), key.WithHelp(k.Confirm, "save")),
		Cancel:         key.NewBinding(key.WithKeys(k.Cancel), key.WithHelp(k.Cancel, "cancel")),
		NextField:      key.NewBinding(key.WithKeys(k.NextField), key.WithHelp(k.NextField, "next field")),
		PrevField:      key.NewBinding(key.WithKeys(k.PrevField), key.WithHelp(k.PrevField, "prev field")),
		StatusFilter:   key.NewBinding(key.WithKeys(k.StatusFilter), key.WithHelp(k.StatusFilter, "status")),
		ShowAll:        key.NewBinding(key.WithKeys("1"), key.WithHelp("1/2/3", "all/done/pending")),
		ShowCompleted:  key.NewBinding(key.WithKeys("2")),
		ShowPending:    key.NewBinding(key.WithKeys("3")),
		PriorityFilter: key.NewBinding(key.WithKeys(k.PriorityFilter), key.WithHelp(k.PriorityFilter, "priority")),
		View:           key.NewBinding(key.WithKeys(k.View), key.WithHelp(k.View, "list/grid")),
		Refresh:        key.NewBinding(key.WithKeys(k.Refresh), key.WithHelp(k.Refresh, "refresh")),
		Dismiss:        key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		Yes:            key.NewBinding(key.WithKeys("y", "Y", k.Confirm)),
		No:             key.NewBinding(key.WithKeys("n", "N")),
	}
}

func (k keyMap) listHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Add, k.Toggle, k.Edit, k.Delete, k.StatusFilter, k.ShowAll, k.PriorityFilter, k.View, k.Refresh, k.Dismiss, k.Quit}
}

func (k keyMap) formHelp() []key.Binding {
	return []key.Binding{k.NextField, k.PrevField, k.Confirm, k.Cancel}
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}
