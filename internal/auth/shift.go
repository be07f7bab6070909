package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ShiftWindow is a staff member's daily working window in the tenant's
// operating timezone. Start and End are wall-clock "HH:MM" values; a window
// whose end is earlier than its start crosses midnight.
type ShiftWindow struct {
	Start    string
	End      string
	RestDays map[time.Weekday]struct{}
}

func ParseRestDays(days []int) map[time.Weekday]struct{} {
	out := make(map[time.Weekday]struct{}, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			out[time.Weekday(d)] = struct{}{}
		}
	}
	return out
}

func clockMinutes(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hh*60 + mm, nil
}

// WithinShift reports whether now falls inside the shift window, evaluated
// against local wall-clock time in loc. Rest days block the whole day.
// Start is inclusive, end exclusive.
func WithinShift(now time.Time, loc *time.Location, w ShiftWindow) bool {
	local := now.In(loc)
	if _, rest := w.RestDays[local.Weekday()]; rest {
		return false
	}

	start, err := clockMinutes(w.Start)
	if err != nil {
		return false
	}
	end, err := clockMinutes(w.End)
	if err != nil {
		return false
	}
	current := local.Hour()*60 + local.Minute()

	if end < start {
		// crosses midnight
		return current >= start || current < end
	}
	return current >= start && current < end
}

// LateForShift reports whether a check-in at now counts as late, in local
// wall-clock time. For a window crossing midnight the early-morning tail
// belongs to the shift that opened the previous evening, so a post-midnight
// check-in is late too.
func LateForShift(now time.Time, loc *time.Location, w ShiftWindow) bool {
	start, err := clockMinutes(w.Start)
	if err != nil {
		return false
	}
	local := now.In(loc)
	current := local.Hour()*60 + local.Minute()

	end, err := clockMinutes(w.End)
	if err != nil || end >= start {
		return current > start
	}
	return current > start || current < end
}

// NextShiftStart returns the next moment the shift opens at or after now.
// The second return is false when the window never opens (every day is a
// rest day or the window is malformed).
func NextShiftStart(now time.Time, loc *time.Location, w ShiftWindow) (time.Time, bool) {
	start, err := clockMinutes(w.Start)
	if err != nil {
		return time.Time{}, false
	}

	local := now.In(loc)
	for day := 0; day <= 7; day++ {
		candidate := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).
			AddDate(0, 0, day).
			Add(time.Duration(start) * time.Minute)
		if candidate.Before(local) {
			continue
		}
		if _, rest := w.RestDays[candidate.Weekday()]; rest {
			continue
		}
		return candidate, true
	}
	return time.Time{}, false
}
