package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nplserver/internal/download"
)

func TestProgressMsgAccumulates(t *testing.T) {
	m := NewProgressModel("Downloading NPL server")

	for _, p := range []download.Progress{
		{Message: "Downloading", Increment: 0, Total: 1000},
		{Message: "Downloading", Increment: 25, Current: 250, Total: 1000},
		{Message: "Downloading", Increment: 50, Current: 750, Total: 1000},
	} {
		updated, _ := m.Update(ProgressMsg{Progress: p})
		m = updated.(ProgressModel)
	}

	if got := m.Percent(); got < 0.749 || got > 0.751 {
		t.Fatalf("expected 0.75, got %v", got)
	}
	view := m.View()
	if !strings.Contains(view, "Downloading NPL server") {
		t.Errorf("expected title in view, got %q", view)
	}
	if !strings.Contains(view, "750 B / 1000 B") {
		t.Errorf("expected byte counts in view, got %q", view)
	}
}

func TestProgressMsgClampsAtComplete(t *testing.T) {
	m := NewProgressModel("test")
	for i := 0; i < 3; i++ {
		updated, _ := m.Update(ProgressMsg{Progress: download.Progress{Increment: 60}})
		m = updated.(ProgressModel)
	}
	if m.Percent() != 1 {
		t.Fatalf("expected percent clamped to 1, got %v", m.Percent())
	}
}

func TestKeysDoNotEndProgress(t *testing.T) {
	m := NewProgressModel("test")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(ProgressModel)
	if cmd != nil || m.Done() {
		t.Fatalf("expected key press to be ignored, done=%v cmd=%v", m.Done(), cmd != nil)
	}
}

func TestStatusMsg(t *testing.T) {
	m := NewProgressModel("test")
	updated, _ := m.Update(StatusMsg{Text: "Resolving release"})
	m = updated.(ProgressModel)

	if !strings.Contains(m.View(), "Resolving release") {
		t.Errorf("expected status in view, got %q", m.View())
	}
}

func TestWorkDoneMsg(t *testing.T) {
	m := NewProgressModel("test")

	updated, cmd := m.Update(WorkDoneMsg{})
	m = updated.(ProgressModel)

	if !m.Done() {
		t.Error("expected Done() to be true after WorkDoneMsg")
	}
	if cmd == nil {
		t.Error("expected tea.Quit command")
	}
}

func TestErrorMsg(t *testing.T) {
	m := NewProgressModel("test")

	updated, cmd := m.Update(ErrorMsg{Err: tea.ErrProgramKilled})
	m = updated.(ProgressModel)

	if !m.Done() {
		t.Error("expected Done() to be true after ErrorMsg")
	}
	if m.Err() != tea.ErrProgramKilled {
		t.Errorf("expected ErrProgramKilled, got %v", m.Err())
	}
	if cmd == nil {
		t.Error("expected tea.Quit command")
	}
	if !strings.Contains(m.View(), "Error:") {
		t.Errorf("expected error in view, got %q", m.View())
	}
}

func TestTickStopsWhenDone(t *testing.T) {
	m := NewProgressModel("test")
	updated, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected another tick while running")
	}
	m = updated.(ProgressModel)
	updated, _ = m.Update(WorkDoneMsg{})
	m = updated.(ProgressModel)
	if _, cmd = m.Update(tickMsg(time.Now())); cmd != nil {
		t.Fatal("expected no tick after completion")
	}
}

func TestLineSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LineSink(&buf)
	sink(download.Progress{Message: "Downloading... 0%", Increment: 0})
	sink(download.Progress{Increment: 40})
	sink(download.Progress{Message: "Download completed", Increment: 60})

	want := "Downloading... 0%\n40%\nDownload completed\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestAutoDecider(t *testing.T) {
	var buf bytes.Buffer
	ok, err := AutoDecider{Answer: true, Out: &buf}.Confirm(context.Background(), "Update?")
	if err != nil || !ok {
		t.Fatalf("expected yes, got %v %v", ok, err)
	}
	if buf.String() != "Update? yes\n" {
		t.Errorf("unexpected echo %q", buf.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (AutoDecider{Answer: true}).Confirm(ctx, "Update?"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDetectMode(t *testing.T) {
	var buf bytes.Buffer
	if got := DetectMode(&buf, false, true); got != ModeJSON {
		t.Errorf("expected ModeJSON, got %v", got)
	}
	if got := DetectMode(&buf, false, false); got != ModePlain {
		t.Errorf("expected ModePlain for non-file writer, got %v", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hi", 2, "hi"},
		{"hello", 3, "hel"},
		{"", 5, ""},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateWithEllipsis(tt.input, tt.max); got != tt.want {
			t.Errorf("TruncateWithEllipsis(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}

func TestNonEmptyOrDash(t *testing.T) {
	if got := NonEmptyOrDash(""); got != "-" {
		t.Errorf("expected '-', got %q", got)
	}
	if got := NonEmptyOrDash("  "); got != "-" {
		t.Errorf("expected '-' for whitespace, got %q", got)
	}
	if got := NonEmptyOrDash("hello"); got != "hello" {
		t.Errorf("expected 'hello', got %q", got)
	}
}
