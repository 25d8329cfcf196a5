package gsync

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/api/calendar/v3"

	"github.com/calmirror/calmirror/internal/dates"
	"github.com/calmirror/calmirror/internal/errs"
	"github.com/calmirror/calmirror/internal/event"
	"github.com/calmirror/calmirror/internal/log"
	"github.com/calmirror/calmirror/internal/recur"
	"github.com/calmirror/calmirror/internal/store"
)

// Category tells the notification layer what kind of thing changed.
type Category string

const (
	CategoryInstance Category = "RECURRENCE_INSTANCE"
	CategorySeries   Category = "RECURRENCE_SERIES"
	CategorySingle   Category = "SINGLE_EVENT"
)

const (
	OpSeriesCreated    = "SERIES_CREATED"
	OpSeriesModified   = "SERIES_MODIFIED"
	OpSeriesDeleted    = "SERIES_DELETED"
	OpInstanceUpdated  = "RECURRENCE_INSTANCE_UPDATED"
	OpInstancesDeleted = "RECURRENCE_INSTANCES_DELETED"
	OpEventUpserted    = "EVENT_UPSERTED"
	OpEventDeleted     = "EVENT_DELETED"
)

// Change describes one observable effect of a sync batch.
type Change struct {
	Title     string   `json:"title"`
	Category  Category `json:"category"`
	Operation string   `json:"operation"`
}

// SyncItem is one calendar's worth of raw provider events from a webhook
// delivery or poll cycle.
type SyncItem struct {
	User     string
	Calendar string
	Payload  []*calendar.Event
}

// Processor applies classified sync actions to the event store. Every write
// is keyed by a stable identity (provider event id, or the base document for
// series operations), so redelivering a batch converges instead of
// duplicating documents.
type Processor struct {
	store    store.EventStore
	expander *recur.Expander
	locks    keyedMutex
}

func NewProcessor(st store.EventStore, x *recur.Expander) *Processor {
	return &Processor{store: st, expander: x}
}

// ProcessEvents reconciles each item sequentially and returns the list of
// changes for downstream notification. Items for the same user and calendar
// are serialized on a per-key mutex, so concurrent deliveries for one
// calendar cannot interleave their writes.
func (p *Processor) ProcessEvents(ctx context.Context, batch []SyncItem) ([]Change, error) {
	var changes []Change
	for _, item := range batch {
		unlock := p.locks.lock(item.User + "\x00" + item.Calendar)
		got, err := p.processItem(ctx, item)
		unlock()
		if err != nil {
			return changes, err
		}
		changes = append(changes, got...)
	}
	return changes, nil
}

func (p *Processor) processItem(ctx context.Context, item SyncItem) ([]Change, error) {
	var plain, recurring []*calendar.Event
	for _, e := range item.Payload {
		if len(e.Recurrence) > 0 || e.RecurringEventId != "" {
			recurring = append(recurring, e)
		} else {
			plain = append(plain, e)
		}
	}

	var changes []Change
	for _, e := range plain {
		ch, err := p.upsertSingle(ctx, item, e)
		if err != nil {
			return changes, err
		}
		changes = append(changes, ch)
	}

	if len(recurring) == 0 {
		return changes, nil
	}

	action, err := Analyze(recurring)
	if err != nil {
		return changes, err
	}

	err = p.store.WithSession(ctx, func(s store.EventStore) error {
		got, err := p.apply(ctx, s, item, action, recurring)
		changes = append(changes, got...)
		return err
	})
	return changes, err
}

// upsertSingle handles non-recurring provider events directly, bypassing the
// analyzer: a cancellation deletes the stored event, anything else upserts
// keyed by provider id.
func (p *Processor) upsertSingle(ctx context.Context, item SyncItem, e *calendar.Event) (Change, error) {
	f := store.Filter{User: item.User, Calendar: item.Calendar, GEventID: e.Id}
	if isCancelled(e) {
		if _, err := p.store.DeleteOne(ctx, f); err != nil {
			return Change{}, err
		}
		return Change{Title: e.Summary, Category: CategorySingle, Operation: OpEventDeleted}, nil
	}
	if _, err := p.store.UpsertOne(ctx, f, providerToEvent(item.User, item.Calendar, e)); err != nil {
		return Change{}, err
	}
	return Change{Title: e.Summary, Category: CategorySingle, Operation: OpEventUpserted}, nil
}

func (p *Processor) apply(ctx context.Context, s store.EventStore, item SyncItem, action Action, payload []*calendar.Event) ([]Change, error) {
	switch a := action.(type) {
	case CreateSeries:
		return p.createSeries(ctx, s, item, a.Base)
	case UpdateInstance:
		return p.updateInstance(ctx, s, item, a)
	case ModifySeries:
		return p.modifySeries(ctx, s, item, a)
	case DeleteInstances:
		return p.deleteInstances(ctx, s, item, a, payload)
	case DeleteSeries:
		return p.deleteSeries(ctx, s, item, a)
	}
	return nil, errs.Developerf("process: unhandled action %T", action)
}

func (p *Processor) createSeries(ctx context.Context, s store.EventStore, item SyncItem, base *calendar.Event) ([]Change, error) {
	rule, ok := primaryRule(base.Recurrence)
	if !ok {
		return nil, errs.Dataf("process: base event %s has no RRULE", base.Id)
	}
	anchor := providerToEvent(item.User, item.Calendar, base)

	// Reuse the stored base when this series was already delivered, so
	// re-expanded instances keep referencing the same document.
	baseID := ""
	stored, err := s.FindOne(ctx, store.Filter{User: item.User, Calendar: item.Calendar, GEventID: base.Id})
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}
	if stored != nil {
		baseID = stored.ID
	}

	docs, err := p.expand(baseID, anchor, rule)
	if err != nil {
		return nil, err
	}
	inserted, err := s.InsertMany(ctx, docs)
	if err != nil {
		return nil, err
	}
	log.Debugf("series expanded", "gEventId", base.Id, "docs", len(docs), "inserted", inserted)

	return []Change{{Title: base.Summary, Category: CategorySeries, Operation: OpSeriesCreated}}, nil
}

func (p *Processor) updateInstance(ctx context.Context, s store.EventStore, item SyncItem, a UpdateInstance) ([]Change, error) {
	incoming := providerToEvent(item.User, item.Calendar, a.Instance)
	f := store.Filter{User: item.User, Calendar: item.Calendar, GEventID: a.Instance.Id}

	// Only the diverged occurrence changes; the base and sibling instances
	// stay untouched.
	_, err := s.UpdateOne(ctx, f, func(ev *event.Event) {
		ev.Title = incoming.Title
		ev.Description = incoming.Description
		ev.StartDate = incoming.StartDate
		ev.EndDate = incoming.EndDate
		ev.IsAllDay = incoming.IsAllDay
	})
	if err == store.ErrNotFound {
		// The instance was never materialized here (e.g. a truncated
		// series); store it now, linked to the base if we hold it.
		if storedBase, berr := s.FindOne(ctx, store.Filter{User: item.User, Calendar: item.Calendar, GEventID: a.Base.Id}); berr == nil {
			incoming.Recurrence = event.InstanceRef{BaseID: storedBase.ID}
		}
		_, err = s.InsertMany(ctx, []event.Event{incoming})
	}
	if err != nil {
		return nil, err
	}
	return []Change{{Title: a.Instance.Summary, Category: CategoryInstance, Operation: OpInstanceUpdated}}, nil
}

func (p *Processor) modifySeries(ctx context.Context, s store.EventStore, item SyncItem, a ModifySeries) ([]Change, error) {
	// Order matters: truncate the old base, drop its future instances, then
	// insert the continuation. Instances before the split boundary are
	// materialized history and stay untouched.
	storedBase, err := s.FindOne(ctx, store.Filter{User: item.User, Calendar: item.Calendar, GEventID: a.Base.Id})
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}
	if storedBase != nil {
		_, err = s.UpdateOne(ctx, store.Filter{ID: storedBase.ID}, func(ev *event.Event) {
			ev.Recurrence = event.SeriesRule{Rules: a.Base.Recurrence}
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.DeleteMany(ctx, store.Filter{User: item.User, BaseID: storedBase.ID, StartOnOrAfter: a.SplitAt}); err != nil {
			return nil, err
		}
	} else {
		log.Infof("split for unknown series, inserting continuation only", "gEventId", a.Base.Id)
	}

	changes, err := p.createSeries(ctx, s, item, a.NewBase)
	if err != nil {
		return nil, err
	}
	for i := range changes {
		changes[i].Operation = OpSeriesModified
	}
	return changes, nil
}

func (p *Processor) deleteInstances(ctx context.Context, s store.EventStore, item SyncItem, a DeleteInstances, payload []*calendar.Event) ([]Change, error) {
	// The analyzer surfaces the first cancellation; the processor iterates
	// the rest of the batch so multi-cancellation deliveries work in one
	// pass. Base and surviving instances stay untouched.
	var deleted int64
	for _, e := range payload {
		if !isCancelled(e) {
			continue
		}
		n, err := s.DeleteOne(ctx, store.Filter{User: item.User, Calendar: item.Calendar, GEventID: e.Id})
		if err != nil {
			return nil, err
		}
		deleted += n
	}
	log.Debugf("instances deleted", "gEventId", a.Base.Id, "count", deleted)
	return []Change{{Title: a.Base.Summary, Category: CategoryInstance, Operation: OpInstancesDeleted}}, nil
}

func (p *Processor) deleteSeries(ctx context.Context, s store.EventStore, item SyncItem, a DeleteSeries) ([]Change, error) {
	title := ""
	for _, e := range a.Cancelled {
		if title == "" && e.Summary != "" {
			title = e.Summary
		}
		// A cancellation may point at its series or be the stored document
		// itself; remove the base and everything referencing it either way.
		if e.RecurringEventId != "" {
			if err := p.removeSeriesByProviderID(ctx, s, item, e.RecurringEventId); err != nil {
				return nil, err
			}
		}
		stored, err := s.FindOne(ctx, store.Filter{User: item.User, Calendar: item.Calendar, GEventID: e.Id})
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if stored.IsBase() {
			if _, err := s.DeleteMany(ctx, store.Filter{User: item.User, BaseID: stored.ID}); err != nil {
				return nil, err
			}
		}
		if _, err := s.DeleteOne(ctx, store.Filter{ID: stored.ID}); err != nil {
			return nil, err
		}
	}
	return []Change{{Title: title, Category: CategorySeries, Operation: OpSeriesDeleted}}, nil
}

func (p *Processor) removeSeriesByProviderID(ctx context.Context, s store.EventStore, item SyncItem, gEventID string) error {
	base, err := s.FindOne(ctx, store.Filter{User: item.User, Calendar: item.Calendar, GEventID: gEventID})
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.DeleteMany(ctx, store.Filter{User: item.User, BaseID: base.ID}); err != nil {
		return err
	}
	_, err = s.DeleteOne(ctx, store.Filter{ID: base.ID})
	return err
}

// expand dispatches to the someday path for the two backlog rule templates
// and to the general series path for everything else.
func (p *Processor) expand(baseID string, anchor event.Event, rule string) ([]event.Event, error) {
	if recur.KindOf(rule) != recur.RuleKindUnknown {
		return p.expander.ExpandSomeday(baseID, anchor, rule)
	}
	return p.expander.ExpandSeries(baseID, anchor, rule)
}

// primaryRule picks the RRULE line out of a provider recurrence array, which
// may also carry EXDATE/RDATE lines.
func primaryRule(rules []string) (string, bool) {
	for _, r := range rules {
		if strings.HasPrefix(r, "RRULE:") {
			return r, true
		}
	}
	return "", false
}

func providerToEvent(user, calendarID string, e *calendar.Event) event.Event {
	ev := event.Event{
		User:        user,
		Calendar:    calendarID,
		GEventID:    e.Id,
		Title:       e.Summary,
		Description: e.Description,
	}
	ev.StartDate, ev.IsAllDay = providerDate(e.Start)
	endDate, _ := providerDate(e.End)
	ev.EndDate = endDate
	return ev
}

// providerDate keeps the provider's wall-clock offset on timed dates instead
// of normalizing to UTC.
func providerDate(d *calendar.EventDateTime) (string, bool) {
	if d == nil {
		return "", false
	}
	if d.Date != "" {
		return d.Date, true
	}
	if t, ok := dates.Parse(d.DateTime); ok {
		return dates.FormatStored(t, false), false
	}
	return "", false
}

// keyedMutex hands out one mutex per key, serializing deliveries for the
// same user and calendar.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*sync.Mutex)
	}
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
