package catalog

import (
	"strconv"
	"testing"
)

func TestGuidTracker(t *testing.T) {
	g := NewGuidTrackerFrom(DefaultGuidStart, false)
	seen := make(map[string]bool)
	for i, want := range []string{"-1001", "-1002", "-1003"} {
		got := g.Next()
		if got != want {
			t.Errorf("Next() #%d = %q, want %q", i, got, want)
		}
		if seen[got] {
			t.Errorf("Next() returned %q twice", got)
		}
		seen[got] = true
	}
}

func TestGuidTrackerIncreasing(t *testing.T) {
	g := NewGuidTrackerFrom(0, true)
	for _, want := range []string{"1", "2"} {
		if got := g.Next(); got != want {
			t.Errorf("Next() = %q, want %q", got, want)
		}
	}
}

func TestNewGuidTrackerDistinctRanges(t *testing.T) {
	first := NewGuidTracker()
	second := NewGuidTracker()

	seen := make(map[string]bool)
	for range 100 {
		seen[first.Next()] = true
	}
	for range 100 {
		g := second.Next()
		if seen[g] {
			t.Errorf("distinct trackers both returned %q", g)
		}
		v, err := strconv.ParseInt(g, 10, 64)
		if err != nil {
			t.Fatalf("Next() = %q is not an integer: %v", g, err)
		}
		if v >= DefaultGuidStart {
			t.Errorf("Next() = %d, want a value below %d", v, DefaultGuidStart)
		}
	}
}
