package helpers

import (
	"strconv"
	"strings"
)

// ParseClock parses a wall-clock time such as "8:05", "08:05" or "21.30".
// It returns hour and minute without range validation beyond two-digit minutes.
func ParseClock(input string) (hour, minute int, ok bool) {
	s := strings.TrimSpace(input)
	sep := strings.IndexAny(s, ":.")
	if sep <= 0 || sep > 2 {
		return 0, 0, false
	}
	hs, ms := s[:sep], s[sep+1:]
	if len(ms) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 {
		return 0, 0, false
	}
	return h, m, true
}
