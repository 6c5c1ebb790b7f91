package usecase

import (
	"testing"
	"time"
)

func TestCalcWindowNoCursor(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	w := CalcWindow(now, nil, 72*time.Hour, 30*time.Minute)

	if !w.End.Equal(now) {
		t.Fatalf("end = %v, want %v", w.End, now)
	}
	if !w.Start.Equal(now.Add(-72 * time.Hour)) {
		t.Fatalf("start = %v, want full lookback", w.Start)
	}
}

func TestCalcWindowRecentCursorRewindsByOverlap(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Hour)
	w := CalcWindow(now, &last, 72*time.Hour, 30*time.Minute)

	if !w.Start.Equal(last.Add(-30 * time.Minute)) {
		t.Fatalf("start = %v, want cursor minus overlap", w.Start)
	}
}

func TestCalcWindowStaleCursorCappedAtMaxLookback(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	last := now.Add(-200 * time.Hour)
	w := CalcWindow(now, &last, 72*time.Hour, 30*time.Minute)

	if !w.Start.Equal(now.Add(-72 * time.Hour)) {
		t.Fatalf("start = %v, want cap", w.Start)
	}
}

func TestCalcWindowBoundsInvariant(t *testing.T) {
	now := time.Now()
	maxWindow := 72 * time.Hour
	overlap := 30 * time.Minute

	for _, last := range []*time.Time{nil, ptrTime(now.Add(-time.Minute)), ptrTime(now.Add(-1000 * time.Hour))} {
		w := CalcWindow(now, last, maxWindow, overlap)
		if w.End.After(now) {
			t.Fatalf("end after now: %v", w.End)
		}
		if w.Start.Before(now.Add(-maxWindow)) {
			t.Fatalf("start before cap: %v", w.Start)
		}
		if w.Duration() > maxWindow+overlap {
			t.Fatalf("window too wide: %v", w.Duration())
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
