// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding the review responds to. It satisfies
// help.KeyMap so the footer and help screen are generated from it.
type keyMap struct {
	Accept    key.Binding
	Reject    key.Binding
	AcceptAll key.Binding
	RevertAll key.Binding

	Prev     key.Binding
	Next     key.Binding
	Down     key.Binding
	Up       key.Binding
	HalfDown key.Binding
	HalfUp   key.Binding
	Top      key.Binding
	Bottom   key.Binding

	Toggle key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Accept: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "accept file"),
		),
		Reject: key.NewBinding(
			key.WithKeys("n", "N"),
			key.WithHelp("n", "reject file"),
		),
		AcceptAll: key.NewBinding(
			key.WithKeys("a", "A"),
			key.WithHelp("a", "accept all"),
		),
		RevertAll: key.NewBinding(
			key.WithKeys("r", "R"),
			key.WithHelp("r", "revert all"),
		),
		Prev: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		HalfDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "half page down"),
		),
		HalfUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "half page up"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "file/summary"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp is the footer in file view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Reject, k.AcceptAll, k.RevertAll, k.Prev, k.Next, k.Help, k.Quit}
}

// summaryHelp is the footer in summary view, where per-file keys do nothing.
func (k keyMap) summaryHelp() []key.Binding {
	return []key.Binding{k.AcceptAll, k.RevertAll, k.Toggle, k.Quit}
}

// FullHelp groups decisions, movement and the rest for the help screen.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Accept, k.Reject, k.AcceptAll, k.RevertAll},
		{k.Prev, k.Next, k.Down, k.Up, k.HalfDown, k.HalfUp, k.Top, k.Bottom},
		{k.Toggle, k.Help, k.Quit},
	}
}
