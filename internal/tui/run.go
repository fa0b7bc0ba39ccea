package tui

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nplserver/internal/download"
)

// RunWithWork creates a bubbletea program, launches workFn in a goroutine,
// and blocks until the program exits. workFn receives a progress sink that
// forwards each report into the program. A non-nil error from workFn is
// rendered and returned. Keyboard input is not read; interrupts reach workFn
// through the caller's signal-aware context.
func RunWithWork(out io.Writer, model ProgressModel, workFn func(sink download.ProgressFunc) error) error {
	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(nil))

	errCh := make(chan error, 1)
	go func() {
		// Let bubbletea start its event loop and render the initial frame.
		time.Sleep(50 * time.Millisecond)

		err := workFn(ProgressSink(p.Send))
		errCh <- err
		if err != nil {
			p.Send(ErrorMsg{Err: err})
			return
		}
		p.Send(WorkDoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(ProgressModel); ok && m.Err() != nil {
		return m.Err()
	}
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// ProgressSink adapts a message sender into a download progress sink.
func ProgressSink(send func(tea.Msg)) download.ProgressFunc {
	return func(p download.Progress) {
		send(ProgressMsg{Progress: p})
	}
}
