package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("scene", "solar-system")).Debug(context.Background(), "frame stepped",
		Uint64("frame", 42),
		Float64("progress", 0.25),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["msg"] != "frame stepped" || rec["scene"] != "solar-system" {
		t.Fatalf("record = %v", rec)
	}
	if rec["frame"] != float64(42) || rec["progress"] != 0.25 || rec["error"] != "boom" {
		t.Fatalf("fields = %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("output = %q", out)
	}
}

func TestEnsureRequestIDIsStable(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if len(id) != 32 {
		t.Fatalf("request id %q, want 32 hex chars", id)
	}
	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id || RequestIDFromContext(ctx2) != id {
		t.Fatalf("request id changed from %q to %q", id, id2)
	}
}

func TestWithRequestLoggerAnnotates(t *testing.T) {
	var buf bytes.Buffer
	ctx, log := WithRequestLogger(ContextWithRequestID(context.Background(), "abc"), New(Config{Format: "json", Output: &buf}))
	log.Info(ctx, "hello")
	if !strings.Contains(buf.String(), `"request_id":"abc"`) {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("FromContext returned nil without fallback")
	}
	fallback := Noop()
	l := New(Config{})
	ctx := ContextWithLogger(context.Background(), l)
	if got := FromContext(ctx, fallback); got != l {
		t.Fatalf("FromContext did not return context logger")
	}
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("FromContext did not return fallback")
	}
}

func TestViewerID(t *testing.T) {
	ctx := ContextWithViewerID(context.Background(), "v1")
	if got := ViewerIDFromContext(ctx); got != "v1" {
		t.Fatalf("ViewerIDFromContext = %q, want v1", got)
	}
	if got := ViewerIDFromContext(context.Background()); got != "" {
		t.Fatalf("ViewerIDFromContext on empty ctx = %q", got)
	}
}

func TestLoggerTagsViewerFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf})
	log.Info(ContextWithViewerID(context.Background(), "v7"), "viewer connected")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["viewer_id"] != "v7" {
		t.Fatalf("viewer_id = %v, want v7", rec["viewer_id"])
	}
}
