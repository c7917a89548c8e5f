// Package ui renders webuictl's terminal output.
//
// Plain strings from the fleet operations stay the source of truth; this
// package only decorates them when stdout is a terminal:
//
//	RenderStatus   - lipgloss-styled status blocks
//	RunDownload    - Bubble Tea progress view for a supervised download
//	Confirm        - Huh yes/no prompt used before a restart
//
// Use DisableColors() to switch to monochrome output (for --no-color flag).
package ui
