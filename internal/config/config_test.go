package config

import (
	"testing"
	"time"
)

func TestParseDwell(t *testing.T) {
	got := parseDwell("processing=1h, shipped=24h")
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got["processing"] != time.Hour || got["shipped"] != 24*time.Hour {
		t.Errorf("parsed = %v", got)
	}
}

func TestParseDwellSkipsMalformed(t *testing.T) {
	got := parseDwell("processing=1h,bogus,shipped=notaduration,delivered=-2h")
	if len(got) != 1 {
		t.Errorf("entries = %d, want 1 (only the valid pair): %v", len(got), got)
	}
	if got["processing"] != time.Hour {
		t.Errorf("parsed = %v", got)
	}
}

func TestParseDwellEmpty(t *testing.T) {
	if got := parseDwell(""); len(got) != 0 {
		t.Errorf("empty input produced %v", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV("a, b ,,c")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitCSV = %v", got)
	}
}
