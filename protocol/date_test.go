package protocol

import (
	"testing"
	"time"
)

func TestFormatHTTPDate(t *testing.T) {
	tm := time.Date(2026, time.August, 4, 12, 30, 0, 0, time.UTC)
	got := FormatHTTPDate(tm)
	want := "Tue, 04 Aug 2026 12:30:00 GMT"
	if got != want {
		t.Errorf("FormatHTTPDate() = %q, want %q", got, want)
	}
}

func TestFormatHTTPDateConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("TST", 3600)
	tm := time.Date(2026, time.August, 4, 13, 30, 0, 0, loc)
	got := FormatHTTPDate(tm)
	want := "Tue, 04 Aug 2026 12:30:00 GMT"
	if got != want {
		t.Errorf("FormatHTTPDate() = %q, want %q", got, want)
	}
}
