package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateTimeRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(\d{1,2}):(\d{2}))?$`)
	clockRegex    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	relativeRegex = regexp.MustCompile(`^(?:in\s+)?(\d+)\s*(m|min|mins|minute|minutes|h|hour|hours|d|day|days)$`)
)

// ParseShiftTime parses a shift start or end time relative to now.
// Supported formats:
// - dd/mm/yyyy HH:MM (e.g., "15/12/2025 08:30")
// - dd/mm/yyyy, midnight of that day
// - HH:MM, today
// - now
// - in N minutes|hours|days (e.g., "in 90 minutes", "2 hours")
// - RFC 3339 (e.g., "2025-12-15T08:30:00Z")
//
// Calendar formats are read in now's location.
func ParseShiftTime(input string, now time.Time) (*time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	if strings.EqualFold(input, "now") {
		t := now
		return &t, nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return &t, nil
	}

	if t, err := parseDateTime(input, now.Location()); err == nil {
		return t, nil
	} else if dateTimeRegex.MatchString(input) {
		return nil, err
	}

	if t, err := parseClock(input, now); err == nil {
		return t, nil
	} else if clockRegex.MatchString(input) {
		return nil, err
	}

	if t, err := parseRelative(input, now); err == nil {
		return t, nil
	} else if relativeRegex.MatchString(strings.ToLower(input)) {
		return nil, err
	}

	return nil, fmt.Errorf("invalid time %q. Use: dd/mm/yyyy HH:MM, dd/mm/yyyy, HH:MM, now, in N minutes|hours|days, or RFC 3339", input)
}

// parseDateTime parses dd/mm/yyyy with an optional HH:MM
func parseDateTime(input string, loc *time.Location) (*time.Time, error) {
	matches := dateTimeRegex.FindStringSubmatch(input)
	if matches == nil {
		return nil, fmt.Errorf("invalid date format")
	}

	day, _ := strconv.Atoi(matches[1])
	month, _ := strconv.Atoi(matches[2])
	year, _ := strconv.Atoi(matches[3])

	if day < 1 || day > 31 {
		return nil, fmt.Errorf("day must be between 1 and 31")
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month must be between 1 and 12")
	}
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("year must be between 2000 and 2100")
	}

	hour, minute := 0, 0
	if matches[4] != "" {
		var err error
		if hour, minute, err = clock(matches[4], matches[5]); err != nil {
			return nil, err
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)

	// time.Date normalises 31/02 into March
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return nil, fmt.Errorf("invalid date %s", input)
	}

	return &t, nil
}

// parseClock parses HH:MM as a time today
func parseClock(input string, now time.Time) (*time.Time, error) {
	matches := clockRegex.FindStringSubmatch(input)
	if matches == nil {
		return nil, fmt.Errorf("invalid clock format")
	}

	hour, minute, err := clock(matches[1], matches[2])
	if err != nil {
		return nil, err
	}

	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return &t, nil
}

func clock(h, m string) (int, int, error) {
	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour > 23 {
		return 0, 0, fmt.Errorf("hour must be between 0 and 23")
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("minute must be between 0 and 59")
	}
	return hour, minute, nil
}

// parseRelative parses offsets like "in 3 days" or "90 minutes"
func parseRelative(input string, now time.Time) (*time.Time, error) {
	matches := relativeRegex.FindStringSubmatch(strings.ToLower(input))
	if matches == nil {
		return nil, fmt.Errorf("invalid relative time format")
	}

	amount, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid number")
	}

	var t time.Time
	switch matches[2] {
	case "m", "min", "mins", "minute", "minutes":
		if amount > 525600 { // one year
			return nil, fmt.Errorf("minutes must be at most 525600")
		}
		t = now.Add(time.Duration(amount) * time.Minute)
	case "h", "hour", "hours":
		if amount > 8760 {
			return nil, fmt.Errorf("hours must be at most 8760")
		}
		t = now.Add(time.Duration(amount) * time.Hour)
	case "d", "day", "days":
		if amount > 365 {
			return nil, fmt.Errorf("days must be at most 365")
		}
		t = now.AddDate(0, 0, amount)
	default:
		return nil, fmt.Errorf("unsupported time unit")
	}
	return &t, nil
}

// FormatShiftTime formats a shift time for tables and the board
func FormatShiftTime(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}

	local := t.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, now.Location())
	daysDiff := int(day.Sub(today).Hours() / 24)

	hm := local.Format("15:04")
	switch daysDiff {
	case 0:
		return "today " + hm
	case 1:
		return "tomorrow " + hm
	case -1:
		return "yesterday " + hm
	}
	return local.Format("02/01/2006 15:04")
}

// FormatUntil describes how far t is from now, e.g. "in 1h20m" or "15m ago"
func FormatUntil(t *time.Time, now time.Time) string {
	if t == nil {
		return ""
	}

	d := t.Sub(now)
	if d >= -time.Minute && d < time.Minute {
		return "now"
	}
	if d > 0 {
		return "in " + shortDuration(d)
	}
	return shortDuration(-d) + " ago"
}

func shortDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	minutes := int((d - time.Duration(hours)*time.Hour) / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}
