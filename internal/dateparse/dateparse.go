package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Window is a concrete calendar date plus a start/end time-of-day pair,
// both normalized to 24-hour "HH:MM".
type Window struct {
	Date  time.Time
	Start string
	End   string
}

// Valid reports whether the window's start precedes its end. Zero-padded
// HH:MM strings compare correctly as plain strings.
func (w Window) Valid() bool {
	return w.Start < w.End
}

// Bounds converts the window into concrete instants in loc.
func (w Window) Bounds(loc *time.Location) (time.Time, time.Time) {
	return CombineDateClock(w.Date, w.Start, loc), CombineDateClock(w.Date, w.End, loc)
}

// CombineDateClock attaches an "HH:MM" time-of-day to a calendar date in loc.
func CombineDateClock(date time.Time, clock string, loc *time.Location) time.Time {
	h, m := splitClock(clock)
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, loc)
}

const (
	defaultStart = "09:00"
	defaultEnd   = "10:00"
)

// dayParts maps day-part keywords to their fixed windows, checked in a
// stable order so the first keyword present in the text wins.
var dayPartOrder = []string{"morning", "afternoon", "evening", "night", "lunch"}

var dayParts = map[string][2]string{
	"morning":   {"09:00", "11:00"},
	"afternoon": {"13:00", "16:00"},
	"evening":   {"17:00", "19:00"},
	"night":     {"20:00", "22:00"},
	"lunch":     {"12:00", "13:00"},
}

var (
	// A clock phrase: "2", "2:30", "2 pm", "2:30pm", "14:00".
	clockPart = `(\d{1,2}(?::\d{2})?(?:\s*[ap]m?)?)`

	rangePattern      = regexp.MustCompile(`(?i)\b` + clockPart + `\s*(?:to|until|-)\s*` + clockPart + `\b`)
	bareRangePattern  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:to|-)\s*(\d{1,2})\b`)
	singleTimePattern = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s*[ap]m?|\d{1,2}:\d{2})\b`)
	clockFormat       = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*([ap])?m?$`)
)

// matcher attempts to extract a start/end pair from text. Matchers are pure
// and tried in a fixed priority order; the first match wins.
type matcher func(text string) (start, end string, ok bool)

var matchers = []matcher{
	matchExplicitRange,
	matchBareRange,
	matchSingleTime,
	matchDayPart,
}

// ExtractWindow pulls a start/end time-of-day pair out of free text. When no
// pattern matches it falls back to 09:00-10:00. The result always satisfies
// start < end.
func ExtractWindow(text string) (start, end string) {
	start, end = defaultStart, defaultEnd
	for _, m := range matchers {
		if s, e, ok := m(text); ok {
			start, end = s, e
			break
		}
	}
	if end <= start {
		// Cross-midnight ranges clamp to same-day; a window that still
		// cannot satisfy start < end falls back to the default.
		end = "23:59"
		if end <= start {
			return defaultStart, defaultEnd
		}
	}
	return start, end
}

// ExtractWindowOn resolves both the date and the time range of text against
// referenceDate. When no date keyword is present the reference date is used.
func ExtractWindowOn(text string, referenceDate time.Time) Window {
	date, ok := ResolveDate(text, referenceDate)
	if !ok {
		date = truncateDate(referenceDate)
	}
	start, end := ExtractWindow(text)
	return Window{Date: date, Start: start, End: end}
}

// matchExplicitRange handles ranges where at least one side is explicit,
// carrying minutes or a meridiem marker: "2 PM to 3:30 PM", "14:00-15:30",
// "2-3:30 pm".
func matchExplicitRange(text string) (string, string, bool) {
	m := rangePattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	if !isExplicitClock(m[1]) && !isExplicitClock(m[2]) {
		return "", "", false
	}
	return NormalizeClock(m[1]), NormalizeClock(m[2]), true
}

// matchBareRange handles hour-only ranges without meridiem markers ("2-3").
// Hours are taken literally; downstream callers apply meridiem defaults.
// Digit pairs embedded in a larger hyphenated run, such as the month-day part
// of an ISO date, are not ranges and are skipped.
func matchBareRange(text string) (string, string, bool) {
	for _, idx := range bareRangePattern.FindAllStringSubmatchIndex(text, -1) {
		if insideDigitRun(text, idx[0], idx[1]) {
			continue
		}
		return NormalizeClock(text[idx[2]:idx[3]]), NormalizeClock(text[idx[4]:idx[5]]), true
	}
	return "", "", false
}

// insideDigitRun reports whether the match at text[start:end] continues a
// hyphenated or colon-separated digit sequence on either side ("2024-06-11",
// "14:00-15:00").
func insideDigitRun(text string, start, end int) bool {
	if start > 0 && (text[start-1] == '-' || text[start-1] == ':') {
		return true
	}
	if end < len(text) && (text[end] == '-' || text[end] == ':') {
		return true
	}
	return false
}

// matchSingleTime handles a lone explicit time ("2 PM", "14:30"); the end is
// one hour after the start.
func matchSingleTime(text string) (string, string, bool) {
	m := singleTimePattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	start := NormalizeClock(m[1])
	return start, AddHour(start), true
}

func matchDayPart(text string) (string, string, bool) {
	lower := strings.ToLower(text)
	for _, part := range dayPartOrder {
		if strings.Contains(lower, part) {
			w := dayParts[part]
			return w[0], w[1], true
		}
	}
	return "", "", false
}

func isExplicitClock(s string) bool {
	return strings.Contains(s, ":") || strings.ContainsAny(strings.ToLower(s), "ap")
}

// NormalizeClock converts a clock phrase to 24-hour "HH:MM". "12 AM" becomes
// "00:00", "12 PM" stays "12:00", missing minutes default to "00". The
// function is idempotent on its own output.
func NormalizeClock(s string) string {
	m := clockFormat.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return defaultStart
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return defaultStart
	}
	minute := m[2]
	if minute == "" {
		minute = "00"
	} else if mv, err := strconv.Atoi(minute); err != nil || mv > 59 {
		// "2:75" is not a clock; keep the hour, drop the bogus minutes.
		minute = "00"
	}
	switch strings.ToLower(m[3]) {
	case "p":
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}
	return fmt.Sprintf("%02d:%s", hour, minute)
}

// AddHour returns the clock one hour after start, clamped to "23:59" when
// the addition would roll past midnight.
func AddHour(start string) string {
	h, m := splitClock(start)
	h++
	if h > 23 {
		return "23:59"
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func splitClock(clock string) (hour, minute int) {
	parts := strings.SplitN(clock, ":", 2)
	hour, _ = strconv.Atoi(parts[0])
	if len(parts) == 2 {
		minute, _ = strconv.Atoi(parts[1])
	}
	return hour, minute
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var weekdayOrder = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// HasDateKeyword reports whether text mentions a day keyword the orchestrator
// should annotate with a resolved date before intent resolution.
func HasDateKeyword(text string) bool {
	_, ok := ResolveDate(text, time.Now())
	return ok
}

// ResolveDate turns day keywords ("today", "tomorrow", weekday names,
// "this week", "next week") into a concrete date relative to ref. The second
// return value is false when no keyword was recognized.
func ResolveDate(text string, ref time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	base := truncateDate(ref)

	switch {
	case strings.Contains(lower, "tomorrow"):
		return base.AddDate(0, 0, 1), true
	case strings.Contains(lower, "today"):
		return base, true
	case strings.Contains(lower, "next week"):
		return base.AddDate(0, 0, 7), true
	}

	for _, name := range weekdayOrder {
		if !strings.Contains(lower, name) {
			continue
		}
		target := weekdays[name]
		delta := (int(target) - int(base.Weekday()) + 7) % 7
		if strings.Contains(lower, "next "+name) {
			delta += 7
		}
		return base.AddDate(0, 0, delta), true
	}

	if strings.Contains(lower, "this week") {
		return base, true
	}
	return base, false
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
