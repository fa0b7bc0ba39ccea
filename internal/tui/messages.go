package tui

import "nplserver/internal/download"

// ProgressMsg carries one download progress report into the program.
type ProgressMsg struct {
	Progress download.Progress
}

// StatusMsg replaces the phase text shown above the bar.
type StatusMsg struct {
	Text string
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
