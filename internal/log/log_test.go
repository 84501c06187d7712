package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Info("ingested document", "document_id", 42)

	out := buf.String()
	if !strings.Contains(out, "ingested document") {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, "document_id=42") {
		t.Errorf("missing attribute in output: %s", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("search complete", "matches", 3)

	out := buf.String()
	if !strings.Contains(out, `"msg":"search complete"`) {
		t.Errorf("expected JSON record, got: %s", out)
	}
	if !strings.Contains(out, `"matches":3`) {
		t.Errorf("expected JSON attribute, got: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("dropped")
	logger.Info("also dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("records below Warn must be filtered: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("Warn record missing: %s", out)
	}
}

func TestComponentScoping(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	logger.With("component", "docstore").Info("created collection")

	if !strings.Contains(buf.String(), "component=docstore") {
		t.Errorf("expected scoped attribute, got: %s", buf.String())
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop returned nil")
	}
	logger.Error("must not panic or print")
}
