package logx

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, closer, err := New(dir, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info().Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected one .log file, got %v", entries)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"":       zerolog.InfoLevel,
		"chatty": zerolog.InfoLevel,
		"trace":  zerolog.TraceLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestLineWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	lw := NewLineWriter(logger, zerolog.InfoLevel, "stderr")

	_, _ = lw.Write([]byte("first\r\nsec"))
	_, _ = lw.Write([]byte("ond\n\npartial"))
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected 2 events before flush, got %d: %s", got, buf.String())
	}
	lw.Flush()

	out := buf.String()
	for _, want := range []string{`"message":"first"`, `"message":"second"`, `"message":"partial"`, `"stream":"stderr"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestMultiWritesToEveryWriter(t *testing.T) {
	var jsonOut, consoleOut bytes.Buffer
	logger := Multi("info", &jsonOut, ConsoleWriter(&consoleOut))

	logger.Debug().Msg("hidden")
	logger.Info().Str("version", "v1.2.3").Msg("installed")

	if strings.Contains(jsonOut.String(), "hidden") {
		t.Fatalf("debug event should be filtered, got %q", jsonOut.String())
	}
	if !strings.Contains(jsonOut.String(), `"version":"v1.2.3"`) {
		t.Fatalf("expected JSON field, got %q", jsonOut.String())
	}
	if !strings.Contains(consoleOut.String(), "installed") {
		t.Fatalf("expected console line, got %q", consoleOut.String())
	}
}
