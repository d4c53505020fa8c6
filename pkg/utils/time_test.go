package utils

import (
	"testing"
	"time"
)

func TestUnixMillis(t *testing.T) {
	before := time.Now().UnixMilli()
	result := UnixMillis()
	after := time.Now().UnixMilli()

	if result < before || result > after {
		t.Errorf("UnixMillis() = %d, expected between %d and %d", result, before, after)
	}
}

func TestFromUnixMillis(t *testing.T) {
	now := time.Now().UTC()
	ms := now.UnixMilli()

	result := FromUnixMillis(ms)

	diff := now.Sub(result)
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Millisecond {
		t.Errorf("FromUnixMillis(%d) = %v, expected close to %v", ms, result, now)
	}
}

func TestUnixMicros(t *testing.T) {
	before := time.Now().UnixMicro()
	result := UnixMicros()
	after := time.Now().UnixMicro()

	if result < before || result > after {
		t.Errorf("UnixMicros() = %d, expected between %d and %d", result, before, after)
	}
}

func TestFromUnixMicros(t *testing.T) {
	now := time.Now().UTC()
	us := now.UnixMicro()

	result := FromUnixMicros(us)
	diff := now.Sub(result)
	if diff < 0 {
		diff = -diff
	}
	if diff > time.Microsecond*10 {
		t.Errorf("FromUnixMicros(%d) = %v, expected close to %v", us, result, now)
	}
}

func TestToUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	local := time.Date(2025, 11, 10, 9, 0, 0, 0, loc)
	result := ToUTC(local)
	if result.Location() != time.UTC {
		t.Errorf("ToUTC result location = %v, want UTC", result.Location())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
	}{
		{"seconds", 45 * time.Second},
		{"minutes", 5*time.Minute + 30*time.Second},
		{"hours", 2*time.Hour + 15*time.Minute},
		{"negative normalizes", -45 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatDuration(tt.d)
			if result == "" {
				t.Errorf("FormatDuration(%v) returned empty string", tt.d)
			}
		})
	}
}

func TestPartitionDate(t *testing.T) {
	ts := time.Date(2025, 11, 10, 14, 5, 17, 123000000, time.UTC)
	if got := PartitionDate(ts); got != "2025-11-10" {
		t.Errorf("PartitionDate = %q, want 2025-11-10", got)
	}
}

func TestPartitionHour(t *testing.T) {
	ts := time.Date(2025, 11, 10, 14, 5, 17, 123000000, time.UTC)
	if got := PartitionHour(ts); got != "14" {
		t.Errorf("PartitionHour = %q, want 14", got)
	}
}

func TestPartitionFileStem(t *testing.T) {
	ts := time.Date(2025, 11, 10, 14, 5, 17, 123000000, time.UTC)
	got := PartitionFileStem(ts)
	want := "05-17.1230000"
	if got != want {
		t.Errorf("PartitionFileStem = %q, want %q", got, want)
	}
}
