package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurrenceRoundTrip(t *testing.T) {
	base := Event{
		ID:         "b1",
		User:       "u1",
		Calendar:   "primary",
		Title:      "standup",
		StartDate:  "2024-01-15T09:00:00+00:00",
		EndDate:    "2024-01-15T09:15:00+00:00",
		Recurrence: SeriesRule{Rules: []string{"RRULE:FREQ=DAILY;COUNT=5"}},
	}

	raw, err := json.Marshal(base)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"recurrence":{"rule":["RRULE:FREQ=DAILY;COUNT=5"]}`)

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.True(t, got.IsBase())
	assert.False(t, got.IsInstance())
	assert.Equal(t, []string{"RRULE:FREQ=DAILY;COUNT=5"}, got.Rules())

	inst := Event{ID: "i1", User: "u1", Recurrence: InstanceRef{BaseID: "b1"}}
	raw, err = json.Marshal(inst)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"recurrence":{"eventId":"b1"}`)

	require.NoError(t, json.Unmarshal(raw, &got))
	assert.True(t, got.IsInstance())
	assert.Equal(t, "b1", got.BaseID())
}

func TestNonRecurringHasNoRecurrence(t *testing.T) {
	raw, err := json.Marshal(Event{ID: "e1", User: "u1", Title: "dentist"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "recurrence")

	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Nil(t, got.Recurrence)
	assert.False(t, got.IsBase())
	assert.False(t, got.IsInstance())
}

func TestRejectsRuleAndEventID(t *testing.T) {
	doc := `{"_id":"x","user":"u1","recurrence":{"rule":["RRULE:FREQ=DAILY"],"eventId":"b1"}}`
	var got Event
	err := json.Unmarshal([]byte(doc), &got)
	assert.Error(t, err)
}
