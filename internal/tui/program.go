package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Prog holds a reference to the running Bubble Tea program so that
// service callbacks (which fire in goroutines) can push messages into
// the update loop with Prog.Send().
var Prog *tea.Program

// SetProgram sets the global Prog variable.
func SetProgram(p *tea.Program) {
	Prog = p
}
