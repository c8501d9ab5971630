// Package render turns poll outcomes into cards and lays cards out for the
// terminal.
//
// Card is pure. Board and Renderer.Board draw with lipgloss; the package-level
// Board uses the ASCII profile so its output carries no escape sequences.
package render
