package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// TextFormatter renders entries as a single human-readable line:
//
//	2024-01-02T15:04:05.000Z INFO server started addr=:8080
type TextFormatter struct{}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	b.WriteString(entry.Level.String())
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	for _, field := range entry.Fields {
		b.WriteByte(' ')
		b.WriteString(field.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(field.Value))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		if strings.ContainsAny(t, " \t\"") {
			return fmt.Sprintf("%q", t)
		}
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// JSONFormatter renders entries as one JSON object per line.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	obj := make(map[string]interface{}, len(entry.Fields)+3)
	obj["ts"] = entry.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	obj["level"] = entry.Level.String()
	obj["msg"] = entry.Message
	for _, field := range entry.Fields {
		obj[field.Key] = field.Value
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ConsoleOutput writes formatted entries to standard streams: warnings and
// errors to stderr, everything else to stdout.
type ConsoleOutput struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

// NewConsoleOutput creates a ConsoleOutput bound to os.Stdout/os.Stderr.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{stdout: os.Stdout, stderr: os.Stderr}
}

// Write implements Output.
func (o *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.stdout
	if entry.Level >= WarnLevel {
		w = o.stderr
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output. Standard streams are not closed.
func (o *ConsoleOutput) Close() error { return nil }

// WriterOutput adapts any io.Writer into an Output. Used by tests.
type WriterOutput struct {
	mu sync.Mutex
	W  io.Writer
}

// Write implements Output.
func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.W.Write(formatted)
	return err
}

// Close implements Output.
func (o *WriterOutput) Close() error { return nil }
