package logging

import (
	"log/slog"
	"strings"
)

// LevelFromString accepts DEBUG, INFO, WARN or ERROR in any case, anything
// else including nil gives INFO.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(*str))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
