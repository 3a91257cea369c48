package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the viewer key bindings.
type KeyMap struct {
	ResetCamera key.Binding
	ToggleTable key.Binding
	Export      key.Binding
	Quit        key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	ResetCamera: key.NewBinding(
		key.WithKeys("r", "home"),
		key.WithHelp("r", "reset view"),
	),
	ToggleTable: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "sensor table"),
	),
	Export: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "export png"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}
