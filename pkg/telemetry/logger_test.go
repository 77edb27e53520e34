package telemetry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{zlog: zerolog.New(buf)}
}

func TestComponentLoggerScopesField(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).NewComponentLogger("daemon")

	logger.Info("started")

	out := buf.String()
	if !strings.Contains(out, `"component":"daemon"`) {
		t.Errorf("missing component field: %s", out)
	}
}

func TestLoggerScopingHelpersChain(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).
		WithRunID("run-1").
		WithStage("resolve").
		WithRemote("acme", "https://acme.example/repo")

	logger.Warn("slow resolve")

	out := buf.String()
	for _, want := range []string{
		`"run_id":"run-1"`,
		`"stage":"resolve"`,
		`"remote_name":"acme"`,
		`"remote_url":"https://acme.example/repo"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestNewLoggerRejectsUnwritableOutput(t *testing.T) {
	_, err := NewLogger(LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: t.TempDir() + "/missing/dir/log",
	})
	if err == nil {
		t.Fatal("expected an error for an unwritable output path")
	}
}
