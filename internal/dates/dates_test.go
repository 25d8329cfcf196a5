package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"compact with Z", "20240115T120000Z", "2024-01-15T12:00:00Z", true},
		{"compact without zone is UTC", "20240115T120000", "2024-01-15T12:00:00Z", true},
		{"compact date only", "20240115", "2024-01-15T00:00:00Z", true},
		{"rfc3339 utc", "2024-01-15T12:00:00Z", "2024-01-15T12:00:00Z", true},
		{"rfc3339 offset", "2024-01-15T12:00:00+03:00", "2024-01-15T09:00:00Z", true},
		{"garbage", "not-a-date", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.UTC().Format(time.RFC3339))
			}
		})
	}
}

func TestRoundTripRFC5545(t *testing.T) {
	iso, ok := ToISO8601("20240601T083000Z")
	require.True(t, ok)
	out, ok := FromISO(FormatRFC5545, iso)
	require.True(t, ok)
	assert.Equal(t, "20240601T083000Z", out)
}

func TestFromISO(t *testing.T) {
	iso := "2024-01-15T12:00:00+03:00"

	got, ok := FromISO(FormatRFC3339, iso)
	require.True(t, ok)
	assert.Equal(t, "2024-01-15T09:00:00Z", got)

	got, ok = FromISO(FormatRFC3339Offset, iso)
	require.True(t, ok)
	assert.Equal(t, "2024-01-15T12:00:00+03:00", got)

	_, ok = FromISO(FormatRFC3339, "bogus")
	assert.False(t, ok)

	_, ok = FromISO(Format("unknown"), iso)
	assert.False(t, ok)
}

func TestUntil(t *testing.T) {
	got, ok := Until("RRULE:FREQ=WEEKLY;UNTIL=20240601T000000Z;INTERVAL=1")
	require.True(t, ok)
	assert.Equal(t, "2024-06-01T00:00:00Z", got.Format(time.RFC3339))

	iso, ok := UntilToISO("RRULE:FREQ=DAILY;UNTIL=20241231T235959Z")
	require.True(t, ok)
	assert.Equal(t, "2024-12-31T23:59:59Z", iso)

	_, ok = Until("RRULE:FREQ=DAILY;COUNT=5")
	assert.False(t, ok)
}

func TestRangesOverlap(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse(YearMonthDay, s)
		if err != nil {
			t.Fatalf("bad test date %q: %v", s, err)
		}
		return d
	}

	// Exact: half-open, touching endpoints do not overlap.
	assert.False(t, RangesOverlap(
		day("2024-01-01"), day("2024-01-02"),
		day("2024-01-02"), day("2024-01-03"), Exact))
	assert.True(t, RangesOverlap(
		day("2024-01-01"), day("2024-01-03"),
		day("2024-01-02"), day("2024-01-04"), Exact))

	// Day: a range ending at midnight still touches that day.
	assert.True(t, RangesOverlap(
		day("2024-01-01"), day("2024-01-02"),
		day("2024-01-02"), day("2024-01-03"), Day))
	assert.False(t, RangesOverlap(
		day("2024-01-01"), day("2024-01-02"),
		day("2024-01-03"), day("2024-01-04"), Day))
}

func TestFormatStored(t *testing.T) {
	utc := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-10", FormatStored(utc, true))
	// Timed dates carry an explicit offset, never a bare Z.
	assert.Equal(t, "2024-03-10T09:30:00+00:00", FormatStored(utc, false))

	kyiv := time.FixedZone("EET", 2*3600)
	assert.Equal(t, "2024-03-10T11:30:00+02:00", FormatStored(utc.In(kyiv), false))

	got, allDay, ok := ParseStored("2024-03-10")
	require.True(t, ok)
	assert.True(t, allDay)
	assert.Equal(t, "2024-03-10", got.Format(YearMonthDay))

	got, allDay, ok = ParseStored("2024-03-10T09:30:00+00:00")
	require.True(t, ok)
	assert.False(t, allDay)
	assert.Equal(t, "2024-03-10T09:30:00Z", got.UTC().Format(time.RFC3339))

	_, _, ok = ParseStored("tomorrow")
	assert.False(t, ok)
}
