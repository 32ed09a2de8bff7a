package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(level Level, f Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(
		WithLevel(level),
		WithFormatter(f),
		WithOutput(&WriterOutput{W: &buf}),
	)
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel, &TextFormatter{})

	l.Debug("nope")
	l.Info("nope")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	if strings.Contains(out, "nope") {
		t.Fatalf("filtered levels leaked: %s", out)
	}
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Fatalf("missing entries: %s", out)
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &TextFormatter{})
	l.Debug("hidden")
	l.SetLevel(DebugLevel)
	if l.GetLevel() != DebugLevel {
		t.Fatalf("level = %v, want debug", l.GetLevel())
	}
	l.Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestTextFormatterFields(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{})
	l.Info("put done",
		Str("queue", "orders"),
		Int("count", 3),
		Bool("ok", true),
		Str("spaced", "two words"),
	)

	out := buf.String()
	for _, want := range []string{"INFO", "put done", "queue=orders", "count=3", "ok=true", `spaced="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &JSONFormatter{})
	l.Error("boom", Err(errors.New("kaput")), Str("queue", "orders"))

	var obj map[string]any
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if obj["level"] != "ERROR" || obj["msg"] != "boom" {
		t.Fatalf("entry = %v", obj)
	}
	if obj["error"] != "kaput" || obj["queue"] != "orders" {
		t.Fatalf("fields = %v", obj)
	}
}

func TestWithAttachesFields(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{})
	child := l.With(Component("http"), Str("queue", "orders"))
	child.Info("listening")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "queue=orders") {
		t.Fatalf("child fields missing: %s", out)
	}

	// the parent stays untouched
	buf.Reset()
	l.Info("plain")
	if strings.Contains(buf.String(), "component=http") {
		t.Fatalf("parent inherited child fields: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": DebugLevel, "info": InfoLevel, "warn": WarnLevel,
		"warning": WarnLevel, "ERROR": ErrorLevel,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = (%v, %v), want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
