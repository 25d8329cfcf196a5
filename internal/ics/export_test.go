package ics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmirror/calmirror/internal/event"
)

func TestWrite(t *testing.T) {
	events := []event.Event{
		{
			ID:         "b1",
			GEventID:   "gb1",
			Title:      "standup",
			StartDate:  "2024-01-15T09:00:00+00:00",
			EndDate:    "2024-01-15T09:30:00+00:00",
			Recurrence: event.SeriesRule{Rules: []string{"RRULE:FREQ=DAILY;COUNT=5"}},
		},
		{
			// Plain materialized copy of the base: not exported.
			ID:         "i1",
			GEventID:   "gb1_20240116T090000Z",
			Title:      "standup",
			StartDate:  "2024-01-16T09:00:00+00:00",
			EndDate:    "2024-01-16T09:30:00+00:00",
			Recurrence: event.InstanceRef{BaseID: "b1"},
		},
		{
			// Diverged occurrence: exported.
			ID:         "i2",
			GEventID:   "gb1_20240117T090000Z",
			Title:      "standup (moved)",
			StartDate:  "2024-01-17T14:00:00+00:00",
			EndDate:    "2024-01-17T14:30:00+00:00",
			Recurrence: event.InstanceRef{BaseID: "b1"},
		},
		{
			ID:        "s1",
			GEventID:  "gs1",
			Title:     "dentist",
			StartDate: "2024-02-01T10:00:00+02:00",
			EndDate:   "2024-02-01T11:00:00+02:00",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, events))
	out := buf.String()

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "RRULE:FREQ=DAILY;COUNT=5")
	assert.Contains(t, out, "SUMMARY:standup (moved)")
	assert.Contains(t, out, "SUMMARY:dentist")
	assert.Contains(t, out, "UID:gb1")
	// Exactly three VEVENTs: base, diverged instance, single.
	assert.Equal(t, 3, strings.Count(out, "BEGIN:VEVENT"))
}

func TestWriteRejectsBadDates(t *testing.T) {
	err := Write(&bytes.Buffer{}, []event.Event{
		{ID: "x", Title: "broken", StartDate: "???", EndDate: "???"},
	})
	assert.Error(t, err)
}
