package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmirror/calmirror/internal/event"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteInsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	n, err := s.InsertMany(ctx, []event.Event{
		{User: "u1", Calendar: "primary", GEventID: "g1", Title: "one", StartDate: "2024-01-01"},
		{User: "u1", Calendar: "primary", GEventID: "g2", Title: "two", StartDate: "2024-01-02",
			Recurrence: event.SeriesRule{Rules: []string{"RRULE:FREQ=DAILY;COUNT=3"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The unique provider key absorbs redelivery.
	n, err = s.InsertMany(ctx, []event.Event{
		{User: "u1", Calendar: "primary", GEventID: "g1", Title: "one again"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := s.FindOne(ctx, Filter{User: "u1", GEventID: "g2"})
	require.NoError(t, err)
	assert.True(t, got.IsBase())
	assert.Equal(t, []string{"RRULE:FREQ=DAILY;COUNT=3"}, got.Rules())

	_, err = s.FindOne(ctx, Filter{User: "nobody"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSessionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	boom := errors.New("boom")
	err := s.WithSession(ctx, func(tx EventStore) error {
		if _, err := tx.InsertMany(ctx, []event.Event{
			{User: "u1", Calendar: "primary", GEventID: "g1"},
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	evs, err := s.Find(ctx, Filter{User: "u1"})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestSQLiteCalendarsAndTokens(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	require.NoError(t, s.AddCalendar(ctx, "u1", "primary"))
	require.NoError(t, s.AddCalendar(ctx, "u1", "primary")) // idempotent
	require.NoError(t, s.SetSyncToken(ctx, "u1", "primary", "tok-1"))

	cals, err := s.Calendars(ctx)
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, Calendar{User: "u1", ID: "primary", SyncToken: "tok-1"}, cals[0])

	require.NoError(t, s.SaveToken(ctx, "u1", []byte(`{"access_token":"x"}`)))
	tok, err := s.Token(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"x"}`, string(tok))

	_, err = s.Token(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RemoveCalendar(ctx, "u1", "primary"))
	cals, err = s.Calendars(ctx)
	require.NoError(t, err)
	assert.Empty(t, cals)
}
