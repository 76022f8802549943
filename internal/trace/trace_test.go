package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"off": LevelOff, "error": LevelError, "QUERY": LevelQuery,
		"detail": LevelDetail, " debug ": LevelDebug,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLevelScopes(t *testing.T) {
	if LevelQuery.ShouldEmit(ScopeCache) {
		t.Fatalf("query level must not emit cache events")
	}
	if !LevelDetail.ShouldEmit(ScopeCache) || LevelDetail.ShouldEmit(ScopeProvider) {
		t.Fatalf("detail level emits up to cache scope")
	}
	if LevelError.ShouldEmit(ScopeDriver) {
		t.Fatalf("error level streams nothing")
	}
	if !LevelError.retains(ScopeQuery) {
		t.Fatalf("error level ring keeps query spans")
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelQuery, FormatText)
	span := Begin(tr, ScopeQuery, "leaf", 0)
	span.WithExtra("type", "Circle").WithExtra("assumptions", "1")
	Point(tr, ScopeCache, "fields", "filtered out")
	span.End("ok")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "→ leaf") {
		t.Fatalf("begin line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "← leaf (ok) {assumptions=1, type=Circle}") {
		t.Fatalf("end line: %q", lines[1])
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatNDJSON)
	Point(tr, ScopeProvider, "SupertypeOf", "Circle")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["scope"] != "provider" || got["name"] != "SupertypeOf" || got["kind"] != "point" {
		t.Fatalf("unexpected event: %v", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStreamTracerReportsWriteError(t *testing.T) {
	tr := NewStreamTracer(failingWriter{}, LevelQuery, FormatText)
	Point(tr, ScopeDriver, "start", "")
	if err := tr.Flush(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Flush() = %v, want write error", err)
	}
}

func TestRingTracerWraps(t *testing.T) {
	r := NewRingTracer(3, LevelQuery)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeQuery, name, "")
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 events, got %d", len(snap))
	}
	for i, want := range []string{"c", "d", "e"} {
		if snap[i].Name != want {
			t.Fatalf("snapshot[%d] = %s, want %s", i, snap[i].Name, want)
		}
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 3 {
		t.Fatalf("dump:\n%s", buf.String())
	}
}

func TestNewBothModeExposesRing(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelError, Mode: ModeBoth, Output: &buf, RingSize: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	span := Begin(tr, ScopeQuery, "unique-method", 0)
	span.End("")
	if buf.Len() != 0 {
		t.Fatalf("error level must not stream, got %q", buf.String())
	}
	ring, ok := RingOf(tr)
	if !ok {
		t.Fatalf("expected ring tracer")
	}
	if n := len(ring.Snapshot()); n != 2 {
		t.Fatalf("ring kept %d events, want 2", n)
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff, Mode: ModeStream})
	if err != nil || tr != Nop {
		t.Fatalf("New(off) = %v, %v", tr, err)
	}
	if s := Begin(tr, ScopeDriver, "x", 0); s.ID() != 0 {
		t.Fatalf("nop span should have id 0")
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("expected Nop from empty context")
	}
	r := NewRingTracer(4, LevelQuery)
	ctx := WithParentSpan(WithTracer(context.Background(), r), 42)
	if FromContext(ctx) != Tracer(r) {
		t.Fatalf("tracer not propagated")
	}
	if ParentSpan(ctx) != 42 {
		t.Fatalf("parent span not propagated")
	}
}

func TestHeartbeat(t *testing.T) {
	r := NewRingTracer(64, LevelQuery)
	h := StartHeartbeat(r, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	snap := r.Snapshot()
	if len(snap) == 0 || snap[0].Kind != KindHeartbeat {
		t.Fatalf("expected heartbeat events, got %v", snap)
	}
	if StartHeartbeat(Nop, time.Second) != nil {
		t.Fatalf("heartbeat on Nop should be nil")
	}
}
