package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithTabIDAddsField(t *testing.T) {
	capture := &logCapture{}
	log := WithTabID(newCaptureLogger(capture), "tab1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["tab"] != "tab1" {
		t.Fatalf("expected tab field, got %+v", entry)
	}
}

func TestWithTabIDSkipsEmpty(t *testing.T) {
	capture := &logCapture{}
	WithTabID(newCaptureLogger(capture), "").Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["tab"]; ok {
		t.Fatalf("expected no tab field, got %+v", entry)
	}
}

func TestWithURLRedactsQuery(t *testing.T) {
	capture := &logCapture{}
	log := WithURL(newCaptureLogger(capture), "https://user:pw@example.com/search?q=secret#frag")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["url"] != "https://example.com/search" {
		t.Fatalf("expected redacted url, got %+v", entry)
	}
}

func TestRedactURLShortensInlineDocuments(t *testing.T) {
	if got := RedactURL("data:text/html;base64,AAAA"); got != "data:" {
		t.Fatalf("expected data: prefix, got %q", got)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
