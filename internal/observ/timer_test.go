package observ

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("load")
	time.Sleep(2 * time.Millisecond)
	tm.End(idx, "lib/a.dart")
	err := tm.Track("outline", func() (string, error) { return "", errors.New("boom") })
	if err == nil {
		t.Fatalf("Track should return the phase error")
	}

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(report.Phases))
	}
	if report.Phases[0].Note != "lib/a.dart" || report.Phases[1].Note != "error" {
		t.Fatalf("unexpected notes: %+v", report.Phases)
	}
	if report.TotalMS < report.Phases[0].DurationMS {
		t.Fatalf("total %f shorter than a phase", report.TotalMS)
	}
	summary := tm.Summary()
	if !strings.HasPrefix(summary, "timings:\n") || !strings.Contains(summary, "// lib/a.dart") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
}

func TestTimerConcurrent(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.End(tm.Begin("outline"), "")
		}()
	}
	wg.Wait()
	if n := len(tm.Report().Phases); n != 16 {
		t.Fatalf("expected 16 phases, got %d", n)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	tm.End(tm.Begin("x"), "")
	if len(tm.Report().Phases) != 0 {
		t.Fatalf("nil timer reported phases")
	}
}
