package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	enter   key.Binding
	back    key.Binding
	toggle  key.Binding
	all     key.Binding
	public  key.Binding
	history key.Binding
	sync    key.Binding
	accept  key.Binding
	discard key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		toggle:  key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		all:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all/none")),
		public:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "public/private")),
		history: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync")),
		accept:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept")),
		discard: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discard")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.enter, k.back, k.toggle, k.all},
		{k.public, k.history, k.sync},
		{k.restart, k.quit},
	}
}
