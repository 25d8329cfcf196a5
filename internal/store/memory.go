package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/calmirror/calmirror/internal/event"
	"github.com/calmirror/calmirror/internal/log"
)

// Memory is an in-process EventStore with the same duplicate-key semantics as
// the SQLite store. It backs tests and ad-hoc tooling; it has no durability.
type Memory struct {
	mu     sync.Mutex
	events map[string]event.Event
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]event.Event)}
}

func matches(ev event.Event, f Filter) bool {
	if f.ID != "" && ev.ID != f.ID {
		return false
	}
	if f.User != "" && ev.User != f.User {
		return false
	}
	if f.Calendar != "" && ev.Calendar != f.Calendar {
		return false
	}
	if f.GEventID != "" && ev.GEventID != f.GEventID {
		return false
	}
	if f.BaseID != "" && ev.BaseID() != f.BaseID {
		return false
	}
	if !f.StartOnOrAfter.IsZero() && startUnix(ev.StartDate) < f.StartOnOrAfter.Unix() {
		return false
	}
	return true
}

func (m *Memory) find(f Filter) []event.Event {
	var out []event.Event
	for _, ev := range m.events {
		if matches(ev, f) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := startUnix(out[i].StartDate), startUnix(out[j].StartDate)
		if si != sj {
			return si < sj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) providerKeyTaken(ev event.Event) bool {
	if ev.GEventID == "" {
		return false
	}
	for _, other := range m.events {
		if other.ID != ev.ID && other.User == ev.User &&
			other.Calendar == ev.Calendar && other.GEventID == ev.GEventID {
			return true
		}
	}
	return false
}

func (m *Memory) Find(ctx context.Context, f Filter) ([]event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(f), nil
}

func (m *Memory) FindOne(ctx context.Context, f Filter) (*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.find(f)
	if len(evs) == 0 {
		return nil, ErrNotFound
	}
	ev := evs[0]
	return &ev, nil
}

func (m *Memory) InsertMany(ctx context.Context, evs []event.Event) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, ev := range evs {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if _, exists := m.events[ev.ID]; exists || m.providerKeyTaken(ev) {
			log.Debugf("skipping duplicate event", "gEventId", ev.GEventID, "user", ev.User)
			continue
		}
		m.events[ev.ID] = ev
		inserted++
	}
	return inserted, nil
}

func (m *Memory) UpsertOne(ctx context.Context, f Filter, ev event.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.find(f)
	if len(existing) > 0 {
		ev.ID = existing[0].ID
		m.events[ev.ID] = ev
		return false, nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	m.events[ev.ID] = ev
	return true, nil
}

func (m *Memory) UpdateOne(ctx context.Context, f Filter, fn func(*event.Event)) (*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.find(f)
	if len(evs) == 0 {
		return nil, ErrNotFound
	}
	ev := evs[0]
	fn(&ev)
	m.events[ev.ID] = ev
	return &ev, nil
}

func (m *Memory) DeleteOne(ctx context.Context, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.find(f)
	if len(evs) == 0 {
		return 0, nil
	}
	delete(m.events, evs[0].ID)
	return 1, nil
}

func (m *Memory) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ev := range m.find(f) {
		delete(m.events, ev.ID)
		n++
	}
	return n, nil
}

// WithSession runs fn against the store itself. The memory store offers no
// rollback; tests that need failure atomicity use the SQLite store.
func (m *Memory) WithSession(ctx context.Context, fn func(s EventStore) error) error {
	return fn(m)
}
