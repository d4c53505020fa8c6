package utils

import (
	"fmt"
	"time"
)

// UnixMillis returns the current time in Unix milliseconds, used to stamp
// Quote.local_timestamp at the edge.
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMillis converts Unix milliseconds to a UTC time.Time.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// UnixMicros returns the current time in Unix microseconds.
func UnixMicros() int64 {
	return time.Now().UnixMicro()
}

// FromUnixMicros converts Unix microseconds to a UTC time.Time.
func FromUnixMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// ToUTC converts a time to UTC; used at venue payload parsing boundaries
// where local_timestamp and server_timestamp must both live in UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// FormatDuration renders a duration in short form for health summaries
// ("45s", "5m30s", "2h15m", "3d5h").
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%dd%dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	}

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	if minutes > 0 {
		if seconds > 0 {
			return fmt.Sprintf("%dm%ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}

	return fmt.Sprintf("%ds", seconds)
}

// PartitionDate renders the date component of the parquet partition path:
// YYYY-MM-DD, UTC.
func PartitionDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// PartitionHour renders the hour component of the parquet partition path:
// two-digit hour, UTC.
func PartitionHour(t time.Time) string {
	return t.UTC().Format("15")
}

// PartitionFileStem renders the mm-ss.fffffff stem of a parquet batch
// file name from its flush timestamp.
func PartitionFileStem(t time.Time) string {
	t = t.UTC()
	return t.Format("04-05") + fractionalSeconds(t)
}

func fractionalSeconds(t time.Time) string {
	ns := t.Nanosecond()
	frac := ns / 100 // ns -> 100ns ticks, 7 digits
	return "." + padLeft(frac, 7)
}

func padLeft(v, width int) string {
	s := itoaNonNeg(v)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func itoaNonNeg(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
