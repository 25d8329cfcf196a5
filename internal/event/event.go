// Package event defines the persisted calendar event document.
//
// An event plays one of three roles: a base anchoring a recurring series
// (carries the RFC5545 rules), a materialized instance of a series (carries a
// back-reference to its base and possibly user-edited overrides), or a plain
// non-recurring event. The role is a closed variant on the Recurrence field,
// so "has both a rule and a base reference" is not a representable state.
package event

import (
	"encoding/json"
	"fmt"
)

// Recurrence is the sealed role marker. The two implementations are
// SeriesRule (base) and InstanceRef (instance); a nil Recurrence means a
// non-recurring event.
type Recurrence interface {
	recurrence()
}

// SeriesRule marks a base event and carries its ordered RFC5545 rule strings
// exactly as exchanged with the provider.
type SeriesRule struct {
	Rules []string
}

// InstanceRef marks an instance event and points at the base document it
// belongs to.
type InstanceRef struct {
	BaseID string
}

func (SeriesRule) recurrence()  {}
func (InstanceRef) recurrence() {}

// Event is one stored calendar entry. StartDate and EndDate are strings:
// bare calendar dates (2006-01-02) for all-day events, RFC3339 with an
// explicit offset for timed ones.
type Event struct {
	ID          string     `json:"_id,omitempty"`
	User        string     `json:"user"`
	Calendar    string     `json:"calendar,omitempty"`
	GEventID    string     `json:"gEventId,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	StartDate   string     `json:"startDate,omitempty"`
	EndDate     string     `json:"endDate,omitempty"`
	IsAllDay    bool       `json:"isAllDay"`
	IsSomeday   bool       `json:"isSomeday,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Order       int        `json:"order,omitempty"`
	Recurrence  Recurrence `json:"-"`
}

// IsBase reports whether the event anchors a recurring series.
func (e *Event) IsBase() bool {
	_, ok := e.Recurrence.(SeriesRule)
	return ok
}

// IsInstance reports whether the event is a materialized occurrence of a
// series.
func (e *Event) IsInstance() bool {
	_, ok := e.Recurrence.(InstanceRef)
	return ok
}

// BaseID returns the referenced base document id for instances, "" otherwise.
func (e *Event) BaseID() string {
	if r, ok := e.Recurrence.(InstanceRef); ok {
		return r.BaseID
	}
	return ""
}

// Rules returns the rule strings for bases, nil otherwise.
func (e *Event) Rules() []string {
	if r, ok := e.Recurrence.(SeriesRule); ok {
		return r.Rules
	}
	return nil
}

// recurrenceDoc is the persisted shape of the recurrence variant: exactly one
// of rule / eventId is present.
type recurrenceDoc struct {
	Rule    []string `json:"rule,omitempty"`
	EventID string   `json:"eventId,omitempty"`
}

type eventAlias Event

type eventDoc struct {
	eventAlias
	Recurrence *recurrenceDoc `json:"recurrence,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	doc := eventDoc{eventAlias: eventAlias(e)}
	switch r := e.Recurrence.(type) {
	case SeriesRule:
		doc.Recurrence = &recurrenceDoc{Rule: r.Rules}
	case InstanceRef:
		doc.Recurrence = &recurrenceDoc{EventID: r.BaseID}
	}
	return json.Marshal(doc)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var doc eventDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*e = Event(doc.eventAlias)
	switch r := doc.Recurrence; {
	case r == nil:
		e.Recurrence = nil
	case r.EventID != "" && len(r.Rule) > 0:
		return fmt.Errorf("event %s: recurrence has both rule and eventId", e.ID)
	case r.EventID != "":
		e.Recurrence = InstanceRef{BaseID: r.EventID}
	case len(r.Rule) > 0:
		e.Recurrence = SeriesRule{Rules: r.Rule}
	}
	return nil
}
