package discount

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// TimeOfDay is a wall-clock time with minute precision, used for daily
// promotion windows and time_of_day conditions. Comparisons are against the
// store's local time as carried by the caller-supplied clock value.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, errors.Errorf("time of day %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, errors.Errorf("time of day %q: bad hour", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, errors.Errorf("time of day %q: bad minute", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return pad2(t.Hour) + ":" + pad2(t.Minute)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// MinutesOfDay returns now's wall-clock offset from midnight in minutes.
func MinutesOfDay(now time.Time) int {
	return now.Hour()*60 + now.Minute()
}

// Weekday returns now's day of week in the 0=Monday..6=Sunday convention
// used throughout the engine. Go's time.Weekday is Sunday-based, so the
// conversion lives here and nowhere else.
func Weekday(now time.Time) int {
	return (int(now.Weekday()) + 6) % 7
}

// ParseDays parses a comma-separated day-of-week allow-set ("0,4,5" with
// 0=Monday). An empty string yields an empty set, meaning every day.
func ParseDays(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d < 0 || d > 6 {
			return nil, errors.Errorf("day of week %q: want 0..6", p)
		}
		days = append(days, d)
	}
	return days, nil
}

// FormatDays renders a day-of-week set back to its comma-separated form.
func FormatDays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}
