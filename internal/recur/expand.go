// Package recur expands recurrence rules into concrete event documents.
//
// Two expansion paths exist. The someday path handles exactly two rule
// templates (weekly and monthly backlog events) with anchor-snapping
// semantics of their own. The series path takes arbitrary RFC5545 rules from
// the provider and materializes instances up front, capped at MaxInstances
// no matter what the rule asks for.
package recur

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/calmirror/calmirror/internal/dates"
	"github.com/calmirror/calmirror/internal/errs"
	"github.com/calmirror/calmirror/internal/event"
)

// The someday rule templates. These are the only rules the someday path
// accepts; they are matched as whole strings, never parsed.
const (
	RuleWeekly  = "RRULE:FREQ=WEEKLY;INTERVAL=1;COUNT=12"
	RuleMonthly = "RRULE:FREQ=MONTHLY;INTERVAL=1;COUNT=12"
)

// RuleKind tags a rule template at classification time so downstream code
// dispatches on the tag, not on string comparisons.
type RuleKind int

const (
	RuleKindUnknown RuleKind = iota
	RuleKindWeekly
	RuleKindMonthly
)

func KindOf(rule string) RuleKind {
	switch rule {
	case RuleWeekly:
		return RuleKindWeekly
	case RuleMonthly:
		return RuleKindMonthly
	}
	return RuleKindUnknown
}

const defaultMaxInstances = 500

// Expander materializes recurrence rules. MaxInstances is threaded in
// explicitly so boundary behavior is testable without global state.
type Expander struct {
	MaxInstances int
}

func New(maxInstances int) *Expander {
	if maxInstances <= 0 {
		maxInstances = defaultMaxInstances
	}
	return &Expander{MaxInstances: maxInstances}
}

func anchorDates(anchor event.Event) (start, end time.Time, err error) {
	if anchor.StartDate == "" || anchor.EndDate == "" {
		return start, end, errs.Developerf("expand: anchor event must have start and end dates")
	}
	start, _, ok := dates.ParseStored(anchor.StartDate)
	if !ok {
		return start, end, errs.Dataf("expand: unparseable start date %q", anchor.StartDate)
	}
	end, _, ok = dates.ParseStored(anchor.EndDate)
	if !ok {
		return start, end, errs.Dataf("expand: unparseable end date %q", anchor.EndDate)
	}
	return start, end, nil
}

// ExpandSomeday expands a weekly or monthly someday rule. If baseID is empty
// this is a fresh series: the returned slice starts with the new base
// document, followed by its instances. With a baseID only the instances are
// returned, for re-expansion against an existing base.
func (x *Expander) ExpandSomeday(baseID string, anchor event.Event, rule string) ([]event.Event, error) {
	start, end, err := anchorDates(anchor)
	if err != nil {
		return nil, err
	}

	kind := KindOf(rule)
	if kind == RuleKindUnknown {
		return nil, errs.Developerf("expand: rule %q not supported yet", rule)
	}

	var anchorStart time.Time
	switch kind {
	case RuleKindWeekly:
		anchorStart = nextSunday(start)
	case RuleKindMonthly:
		anchorStart = firstOfNextMonth(end)
	}

	occs, err := x.enumerate(anchorStart, rule)
	if err != nil {
		return nil, err
	}

	docs, newBase := seriesScaffold(baseID, anchor, rule)
	for _, occ := range occs {
		var instStart, instEnd time.Time
		switch kind {
		case RuleKindWeekly:
			// A weekly someday instance spans its whole week.
			instStart = startOfDay(occ)
			instEnd = instStart.AddDate(0, 0, 6)
		case RuleKindMonthly:
			// A monthly one spans its whole calendar month.
			instStart = time.Date(occ.Year(), occ.Month(), 1, 0, 0, 0, 0, occ.Location())
			instEnd = instStart.AddDate(0, 1, -1)
		}
		docs = append(docs, instanceDoc(anchor, newBase, instStart, instEnd))
	}
	return docs, nil
}

// ExpandSeries expands an arbitrary provider RFC5545 rule into instance
// documents, preserving the anchor's duration for each occurrence. The base
// document handling mirrors ExpandSomeday.
func (x *Expander) ExpandSeries(baseID string, anchor event.Event, rule string) ([]event.Event, error) {
	start, end, err := anchorDates(anchor)
	if err != nil {
		return nil, err
	}
	duration := end.Sub(start)

	occs, err := x.enumerateFrom(start, rule)
	if err != nil {
		return nil, err
	}

	docs, newBase := seriesScaffold(baseID, anchor, rule)
	for _, occ := range occs {
		docs = append(docs, instanceDoc(anchor, newBase, occ, occ.Add(duration)))
	}
	return docs, nil
}

// seriesScaffold decides whether a fresh base document is needed and returns
// the base the instances will reference.
func seriesScaffold(baseID string, anchor event.Event, rule string) ([]event.Event, event.Event) {
	if baseID != "" {
		ref := anchor
		ref.ID = baseID
		return nil, ref
	}
	base := anchor
	base.ID = uuid.NewString()
	base.Recurrence = event.SeriesRule{Rules: []string{rule}}
	return []event.Event{base}, base
}

func instanceDoc(anchor, base event.Event, start, end time.Time) event.Event {
	inst := anchor
	inst.ID = ""
	// Instances of a series are not independently orderable in the backlog.
	inst.Order = 0
	inst.Recurrence = event.InstanceRef{BaseID: base.ID}
	inst.StartDate = dates.FormatStored(start, anchor.IsAllDay)
	inst.EndDate = dates.FormatStored(end, anchor.IsAllDay)
	if anchor.GEventID != "" {
		// Provider convention: instance ids are the base id plus the
		// occurrence start in compact UTC. Deterministic ids keep
		// redelivered webhooks idempotent.
		inst.GEventID = anchor.GEventID + "_" + start.UTC().Format("20060102T150405Z")
	}
	return inst
}

// enumerate evaluates a rule template anchored with a synthetic DTSTART.
func (x *Expander) enumerate(anchorStart time.Time, rule string) ([]time.Time, error) {
	src := "DTSTART:" + anchorStart.UTC().Format("20060102T150405Z") + "\n" + rule
	set, err := rrule.StrToRRuleSet(src)
	if err != nil {
		return nil, errs.Dataf("expand: parsing rule %q: %v", rule, err)
	}
	occs := set.All()
	if len(occs) > x.MaxInstances {
		occs = occs[:x.MaxInstances]
	}
	return occs, nil
}

// enumerateFrom evaluates an arbitrary rule with the given DTSTART,
// clamping the effective count at MaxInstances. Rules without COUNT or
// UNTIL still stop at the cap.
func (x *Expander) enumerateFrom(start time.Time, rule string) ([]time.Time, error) {
	r, err := rrule.StrToRRule(strings.TrimPrefix(rule, "RRULE:"))
	if err != nil {
		return nil, errs.Dataf("expand: parsing rule %q: %v", rule, err)
	}
	r.DTStart(start)

	next := r.Iterator()
	var occs []time.Time
	for len(occs) < x.MaxInstances {
		occ, ok := next()
		if !ok {
			break
		}
		occs = append(occs, occ)
	}
	return occs, nil
}

// nextSunday returns midnight of the next Sunday strictly after t's day; a
// start already on Sunday advances a full week.
func nextSunday(t time.Time) time.Time {
	d := startOfDay(t)
	days := (7 - int(d.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return d.AddDate(0, 0, days)
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
