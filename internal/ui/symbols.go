package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Finished or running
	SymbolFail     = "✗" // Failed or unreachable
	SymbolPending  = "○" // Not started or not running
	SymbolProgress = "◐" // In progress
	SymbolWarning  = "⚠" // Needs attention
)
