// Package exportdate resolves the calendar day a run applies to.
package exportdate

import (
	"strings"
	"time"
)

const (
	// Layout is the override and record format (YYYY-MM-DD).
	Layout = "2006-01-02"
	// FileLayout is the date stamp used in bulk export file names (MM_DD_YYYY).
	FileLayout = "01_02_2006"

	// The provider starts its daily export around 07:00 UTC and all files are
	// available by 08:00 UTC.
	availableFromHourUTC = 8
)

// Resolve returns the override date when it parses as YYYY-MM-DD. Otherwise it returns
// the UTC date of now, or the day before when now is earlier than 08:00 UTC.
// The result is always midnight UTC.
func Resolve(override string, now time.Time) time.Time {
	if override = strings.TrimSpace(override); override != "" {
		if d, err := time.Parse(Layout, override); err == nil {
			return d
		}
	}

	now = now.UTC()
	if now.Hour() < availableFromHourUTC {
		now = now.AddDate(0, 0, -1)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Format renders d as YYYY-MM-DD.
func Format(d time.Time) string {
	return d.Format(Layout)
}

// FileStamp renders d as MM_DD_YYYY.
func FileStamp(d time.Time) string {
	return d.Format(FileLayout)
}

// Parse parses a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}
