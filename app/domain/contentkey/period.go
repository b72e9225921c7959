package contentkey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timeframe is the bucket size of a period key.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
)

// PeriodNatal marks content tied to immutable facts rather than a calendar bucket.
const PeriodNatal = "natal"

// DefaultTimezone is used when a subject's zone is missing or invalid.
const DefaultTimezone = "UTC"

func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case TimeframeDay, TimeframeWeek, TimeframeMonth, TimeframeYear:
		return tf, nil
	case "today", "daily":
		return TimeframeDay, nil
	case "weekly":
		return TimeframeWeek, nil
	case "monthly":
		return TimeframeMonth, nil
	case "yearly", "annual":
		return TimeframeYear, nil
	default:
		return "", fmt.Errorf("%w: unknown timeframe %q", ErrInvalidKey, s)
	}
}

// PeriodKey buckets instant in the subject's own zone:
// day "2025-03-01", week "2025-W09" (ISO), month "2025-03", year "2025".
func PeriodKey(tf Timeframe, instant time.Time, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := instant.In(loc)
	switch tf {
	case TimeframeDay:
		return local.Format("2006-01-02"), nil
	case TimeframeWeek:
		year, week := local.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case TimeframeMonth:
		return local.Format("2006-01"), nil
	case TimeframeYear:
		return local.Format("2006"), nil
	default:
		return "", fmt.Errorf("%w: unknown timeframe %q", ErrInvalidKey, tf)
	}
}

// ResolvedLocation is the outcome of ResolveLocation.
type ResolvedLocation struct {
	Location *time.Location
	// Name is the input as understood, or DefaultTimezone on fallback.
	Name string
	// Fallback is set when the input was missing or invalid.
	Fallback bool
}

var offsetPattern = regexp.MustCompile(`^(?i:UTC|GMT)?\s*([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ResolveLocation accepts IANA names ("Europe/Athens") and fixed offsets
// ("UTC+2", "GMT-05:30", "+0200"). Anything else resolves to UTC with
// Fallback set; whether to proceed on fallback is the caller's decision.
func ResolveLocation(tz string) ResolvedLocation {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return fallbackLocation()
	}
	if m := offsetPattern.FindStringSubmatch(tz); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return fallbackLocation()
		}
		offset := hours*3600 + minutes*60
		if m[1] == "-" {
			offset = -offset
		}
		return ResolvedLocation{Location: time.FixedZone(tz, offset), Name: tz}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil || strings.EqualFold(tz, "local") {
		return fallbackLocation()
	}
	return ResolvedLocation{Location: loc, Name: tz}
}

func fallbackLocation() ResolvedLocation {
	return ResolvedLocation{Location: time.UTC, Name: DefaultTimezone, Fallback: true}
}
