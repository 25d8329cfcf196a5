// Package dates converts between the date representations the sync engine
// deals in: ISO-8601 / RFC3339 instants, the compact RFC5545 form used inside
// recurrence rules (YYYYMMDDTHHmmssZ), and bare calendar dates for all-day
// events.
//
// Conversion functions report failure with ok=false instead of an error;
// deciding what to do about missing or malformed data is the caller's job.
package dates

import (
	"strings"
	"time"
)

const (
	// YearMonthDay is the stored form of all-day dates.
	YearMonthDay = "2006-01-02"

	// RFC3339Offset renders an explicit numeric UTC offset, never a bare Z.
	// Stored timed dates keep their wall-clock offset so display across
	// timezones stays correct.
	RFC3339Offset = "2006-01-02T15:04:05-07:00"

	rfc5545Compact = "20060102T150405"
	rfc5545Date    = "20060102"
)

// Format names a target string rendering for FromISO.
type Format string

const (
	FormatRFC5545       Format = "RFC5545"
	FormatRFC3339       Format = "RFC3339"
	FormatRFC3339Offset Format = "RFC3339_OFFSET"
)

// Parse accepts compact RFC5545 with or without a trailing Z, and RFC3339
// with Z or an explicit offset. A compact string without a zone designator is
// treated as UTC, not local time; the provider feeds UTC timestamps into
// UNTIL values and we never want them reinterpreted by the host timezone.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	compact := strings.TrimSuffix(s, "Z")
	if t, err := time.ParseInLocation(rfc5545Compact, compact, time.UTC); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(rfc5545Date, compact, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ToISO8601 normalizes any accepted input form to an RFC3339 UTC instant.
func ToISO8601(s string) (string, bool) {
	t, ok := Parse(s)
	if !ok {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

// FromISO renders an ISO instant into the requested string form.
func FromISO(f Format, iso string) (string, bool) {
	t, ok := Parse(iso)
	if !ok {
		return "", false
	}
	switch f {
	case FormatRFC5545:
		return t.UTC().Format(rfc5545Compact) + "Z", true
	case FormatRFC3339:
		return t.UTC().Format(time.RFC3339), true
	case FormatRFC3339Offset:
		return t.Format(RFC3339Offset), true
	}
	return "", false
}

// Until extracts the UNTIL component of a full RFC5545 rule string and
// parses it as UTC.
func Until(rule string) (time.Time, bool) {
	i := strings.Index(rule, "UNTIL=")
	if i < 0 {
		return time.Time{}, false
	}
	v := rule[i+len("UNTIL="):]
	if j := strings.IndexAny(v, ";\n"); j >= 0 {
		v = v[:j]
	}
	return Parse(v)
}

// UntilToISO is Until rendered as an RFC3339 UTC instant.
func UntilToISO(rule string) (string, bool) {
	t, ok := Until(rule)
	if !ok {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

// Granularity selects how RangesOverlap compares endpoints.
type Granularity int

const (
	// Exact compares instants with half-open semantics.
	Exact Granularity = iota
	// Day compares calendar days, so a range ending at midnight still
	// touches the day it ends on.
	Day
)

// RangesOverlap reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func RangesOverlap(aStart, aEnd, bStart, bEnd time.Time, g Granularity) bool {
	if g == Day {
		as, ae := dayOf(aStart), dayOf(aEnd)
		bs, be := dayOf(bStart), dayOf(bEnd)
		return !as.After(be) && !bs.After(ae)
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatStored renders a date the way event documents persist it: bare
// calendar date for all-day events, RFC3339 with an explicit numeric offset
// otherwise.
func FormatStored(t time.Time, allDay bool) string {
	if allDay {
		return t.Format(YearMonthDay)
	}
	return t.Format(RFC3339Offset)
}

// ParseStored parses a stored event date, reporting whether it was the
// all-day form.
func ParseStored(s string) (t time.Time, allDay, ok bool) {
	if t, err := time.Parse(YearMonthDay, s); err == nil {
		return t, true, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, true
	}
	return time.Time{}, false, false
}
