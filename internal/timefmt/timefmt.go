// Package timefmt renders commit timestamps for display at a fixed UTC+8
// offset, independent of the host time zone.
package timefmt

import "time"

const (
	Layout = "2006-01-02 15:04:05"

	offsetSeconds = 8 * 60 * 60
)

var Zone = time.FixedZone("UTC+8", offsetSeconds)

// ToDisplayTime converts seconds since the epoch to civil time in Zone.
func ToDisplayTime(sec int64) time.Time {
	return time.Unix(sec, 0).In(Zone)
}

// Format renders t in Zone using Layout.
func Format(t time.Time) string {
	return t.In(Zone).Format(Layout)
}

// FormatUnix is Format(ToDisplayTime(sec)).
func FormatUnix(sec int64) string {
	return Format(ToDisplayTime(sec))
}
