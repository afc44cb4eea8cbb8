package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected 'test message' in output, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected 'key=value' in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "json", &buf)

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("expected JSON msg field in output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("expected JSON key field in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNewLoggerWithWriter_ChildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelDebug, "text", &buf)
	child := logger.With("component", "batch")

	child.Debug("save", "class_group", "Grade5A")

	output := buf.String()
	if !strings.Contains(output, "component=batch") {
		t.Errorf("expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "class_group=Grade5A") {
		t.Errorf("expected task_id in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"audit", LevelAudit},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAuditLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelAudit, "text", &buf)

	logger.Info("hidden")
	logger.Log(context.Background(), LevelAudit, "grid published", "class_group", "Grade5A")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("INFO should be filtered at AUDIT level, got: %s", output)
	}
	if !strings.Contains(output, "level=AUDIT") {
		t.Errorf("expected level=AUDIT, got: %s", output)
	}
}

func TestTee_WritesToAllHandlers(t *testing.T) {
	var text, js bytes.Buffer
	logger := slog.New(NewTee(
		newHandler(slog.LevelInfo, "text", &text),
		newHandler(slog.LevelWarn, "json", &js),
	)).With("component", "server")

	logger.Info("info only")
	logger.Warn("both")

	if !strings.Contains(text.String(), "info only") || !strings.Contains(text.String(), "both") {
		t.Errorf("text output: %s", text.String())
	}
	if strings.Contains(js.String(), "info only") {
		t.Errorf("json handler got INFO: %s", js.String())
	}
	if !strings.Contains(js.String(), `"component":"server"`) {
		t.Errorf("json output missing attrs: %s", js.String())
	}
}
