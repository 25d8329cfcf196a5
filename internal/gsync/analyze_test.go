package gsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/calmirror/calmirror/internal/errs"
)

func baseEvent(id, rule string) *calendar.Event {
	return &calendar.Event{Id: id, Summary: "series " + id, Recurrence: []string{rule}}
}

func instanceEvent(id, baseID string) *calendar.Event {
	return &calendar.Event{Id: id, RecurringEventId: baseID}
}

func cancelledEvent(id, baseID string) *calendar.Event {
	return &calendar.Event{Id: id, RecurringEventId: baseID, Status: "cancelled"}
}

func TestAnalyzeCreateSeries(t *testing.T) {
	got, err := Analyze([]*calendar.Event{baseEvent("b1", "RRULE:FREQ=DAILY;COUNT=5")})
	require.NoError(t, err)
	a, ok := got.(CreateSeries)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, "b1", a.Base.Id)
}

func TestAnalyzeDeleteSeries(t *testing.T) {
	got, err := Analyze([]*calendar.Event{
		cancelledEvent("b1_1", "b1"),
		cancelledEvent("b1_2", "b1"),
		cancelledEvent("b1_3", "b1"),
	})
	require.NoError(t, err)
	a, ok := got.(DeleteSeries)
	require.True(t, ok, "got %T", got)
	assert.Len(t, a.Cancelled, 3)
}

func TestAnalyzeDeleteInstances(t *testing.T) {
	got, err := Analyze([]*calendar.Event{
		baseEvent("b1", "RRULE:FREQ=WEEKLY"),
		cancelledEvent("b1_2", "b1"),
		cancelledEvent("b1_3", "b1"),
	})
	require.NoError(t, err)
	a, ok := got.(DeleteInstances)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, "b1", a.Base.Id)
	// First cancellation in batch order is surfaced.
	assert.Equal(t, "b1_2", a.Cancelled.Id)
}

func TestAnalyzeModifySeries(t *testing.T) {
	old := baseEvent("b1", "RRULE:FREQ=DAILY;UNTIL=20240601T000000Z")
	cont := baseEvent("b2", "RRULE:FREQ=WEEKLY")

	got, err := Analyze([]*calendar.Event{old, cont})
	require.NoError(t, err)
	a, ok := got.(ModifySeries)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, "b1", a.Base.Id)
	assert.Equal(t, "b2", a.NewBase.Id)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), a.SplitAt)
	assert.False(t, a.HasInstances)

	got, err = Analyze([]*calendar.Event{old, cont, instanceEvent("b2_1", "b2")})
	require.NoError(t, err)
	a, ok = got.(ModifySeries)
	require.True(t, ok, "got %T", got)
	assert.True(t, a.HasInstances)
}

func TestAnalyzeUpdateInstance(t *testing.T) {
	got, err := Analyze([]*calendar.Event{
		baseEvent("b1", "RRULE:FREQ=DAILY;COUNT=10"),
		instanceEvent("b1_3", "b1"),
	})
	require.NoError(t, err)
	a, ok := got.(UpdateInstance)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, "b1", a.Base.Id)
	assert.Equal(t, "b1_3", a.Instance.Id)
}

func TestAnalyzeEmptyPayload(t *testing.T) {
	_, err := Analyze(nil)
	require.Error(t, err)
	assert.True(t, errs.IsDeveloper(err))
}

func TestAnalyzeUnhandledShape(t *testing.T) {
	// A base plus an instance of some other series matches no rule.
	_, err := Analyze([]*calendar.Event{
		baseEvent("b1", "RRULE:FREQ=DAILY"),
		instanceEvent("b9_1", "b9"),
	})
	require.Error(t, err)
	assert.True(t, errs.IsDeveloper(err))
}

func TestAnalyzePriorityDeleteInstancesBeatsModify(t *testing.T) {
	// Cancellations alongside an UNTIL base classify as instance deletion,
	// not a split.
	got, err := Analyze([]*calendar.Event{
		baseEvent("b1", "RRULE:FREQ=DAILY;UNTIL=20240601T000000Z"),
		baseEvent("b2", "RRULE:FREQ=DAILY"),
		cancelledEvent("b1_9", "b1"),
	})
	require.NoError(t, err)
	_, ok := got.(DeleteInstances)
	assert.True(t, ok, "got %T", got)
}
