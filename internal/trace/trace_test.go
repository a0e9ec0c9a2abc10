package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"off": LevelOff, "PHASE": LevelPhase, "debug": LevelDebug} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLevelScopes(t *testing.T) {
	if !LevelPhase.ShouldEmit(ScopeCommand) || LevelPhase.ShouldEmit(ScopeScan) {
		t.Fatalf("phase level must stop at commands")
	}
	if !LevelError.ShouldEmit(ScopeSession) || LevelError.ShouldEmit(ScopeCommand) {
		t.Fatalf("error level must only pass session points")
	}
}

func TestStreamTracerWritesSpan(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)
	span := Begin(tr, ScopeScan, "outline", 0)
	span.WithExtra("nodes", "3").End("ok")
	Begin(tr, ScopeNode, "skipped", 0).End("")

	out := buf.String()
	if !strings.Contains(out, "→ outline") || !strings.Contains(out, "← outline (ok) {nodes=3}") {
		t.Fatalf("unexpected trace output:\n%s", out)
	}
	if strings.Contains(out, "skipped") {
		t.Fatalf("node scope must be filtered at detail level:\n%s", out)
	}
}

func TestRingTracerWraps(t *testing.T) {
	tr := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(tr, ScopeNode, name, "")
	}
	snap := tr.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	var buf bytes.Buffer
	if err := tr.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("expected two ndjson lines, got %q", buf.String())
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("expected Nop by default")
	}
	tr := NewRingTracer(8, LevelError)
	ctx := WithTracer(context.Background(), tr)
	Error(FromContext(ctx), "wrap", errors.New("boom"))
	if snap := tr.Snapshot(); len(snap) != 1 || snap[0].Name != "error:wrap" {
		t.Fatalf("expected one error point, got %+v", snap)
	}
}

func TestNewOffIsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("expected disabled tracer, got %v %v", tr, err)
	}
}

func TestRingOf(t *testing.T) {
	ring := NewRingTracer(4, LevelDebug)
	if RingOf(ring) != ring {
		t.Fatalf("ring tracer not found")
	}
	var buf bytes.Buffer
	multi := NewMultiTracer(LevelDebug, NewStreamTracer(&buf, LevelDebug, FormatText), ring)
	if RingOf(multi) != ring {
		t.Fatalf("ring behind multi tracer not found")
	}
	if RingOf(NewStreamTracer(&buf, LevelDebug, FormatText)) != nil || RingOf(Nop) != nil {
		t.Fatalf("stream and nop tracers keep no ring")
	}
}
