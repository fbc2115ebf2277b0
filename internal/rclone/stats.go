package rclone

import (
	"regexp"
	"strconv"
	"strings"
)

// statsFlags make rclone log a one-line transfer summary to stderr every
// second.
var statsFlags = []string{"--stats", "1s", "--stats-one-line", "-v"}

// statsLine matches the one-line summary in both the current form
// "1.234 MiB / 10 MiB, 12%, 1 MiB/s, ETA 8s" and the older
// "1.234M / 10 MBytes, 12%, ...". An unknown total prints "-" for the
// percentage.
var statsLine = regexp.MustCompile(`(\d[\d.]* ?[A-Za-z]*) / (\d[\d.]* ?[A-Za-z]*), (?:(\d+)%|-)(?:, (.+))?$`)

// Stats is one parsed transfer summary.
type Stats struct {
	Transferred string
	Total       string
	// Percent is -1 when rclone does not know the total yet.
	Percent int
	// Rate holds the speed and ETA as printed.
	Rate string
}

// ParseStats extracts a transfer summary from one line of rclone's log.
func ParseStats(line string) (Stats, bool) {
	m := statsLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Stats{}, false
	}
	s := Stats{Transferred: m[1], Total: m[2], Percent: -1, Rate: strings.TrimSpace(m[4])}
	if m[3] != "" {
		s.Percent, _ = strconv.Atoi(m[3])
	}
	return s, true
}

// String renders the summary without the percentage.
func (s Stats) String() string {
	out := s.Transferred + " / " + s.Total
	if s.Rate != "" {
		out += ", " + s.Rate
	}
	return out
}
