package convert

import (
	"fmt"
	"time"
)

// Layouts without an offset are read in the location handed to ParseTime.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC3339 timestamps and the naive ISO forms used by
// open-data APIs ("2024-01-01T00:00:00", Open-Meteo's "2024-01-01T00:00").
// The result is expressed in loc.
func ParseTime(str string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
		return t.In(loc), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, str, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported timestamp format %q", str)
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
