// Package gsync reconciles provider change batches against the internal
// event store. The analyzer classifies a batch into exactly one sync action;
// the processor applies that action with the minimal set of writes.
package gsync

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/calmirror/calmirror/internal/dates"
	"github.com/calmirror/calmirror/internal/errs"
)

// Action is the closed set of things one provider batch can mean. Each
// variant carries only the references its handler needs; anything outside
// these five shapes is a modeling gap and fails classification.
type Action interface {
	isAction()
}

// CreateSeries: a brand-new series announcement, a single base event.
type CreateSeries struct {
	Base *calendar.Event
}

// ModifySeries: a series split. Base carries the truncated (UNTIL-bearing)
// rule, NewBase continues the series from SplitAt on. HasInstances reports
// whether bare instances rode along in the batch.
type ModifySeries struct {
	Base         *calendar.Event
	NewBase      *calendar.Event
	SplitAt      time.Time
	HasInstances bool
}

// UpdateInstance: a single occurrence diverged from its base.
type UpdateInstance struct {
	Base     *calendar.Event
	Instance *calendar.Event
}

// DeleteSeries: every event in the batch was cancelled and no base survives.
type DeleteSeries struct {
	Cancelled []*calendar.Event
}

// DeleteInstances: one or more occurrences were cancelled while the base
// lives on. Cancelled is the first cancellation in batch order; the
// processor walks the rest of the batch itself.
type DeleteInstances struct {
	Base      *calendar.Event
	Cancelled *calendar.Event
}

func (CreateSeries) isAction()    {}
func (ModifySeries) isAction()    {}
func (UpdateInstance) isAction()  {}
func (DeleteSeries) isAction()    {}
func (DeleteInstances) isAction() {}

func isBase(e *calendar.Event) bool {
	return len(e.Recurrence) > 0 && e.RecurringEventId == ""
}

func isInstance(e *calendar.Event) bool {
	return e.RecurringEventId != ""
}

func isCancelled(e *calendar.Event) bool {
	return e.Status == "cancelled"
}

// ruleWithUntil returns the first rule string carrying an UNTIL clause.
func ruleWithUntil(rules []string) (string, bool) {
	for _, r := range rules {
		if _, ok := dates.Until(r); ok {
			return r, true
		}
	}
	return "", false
}

// Analyze classifies a non-empty batch of provider events into one Action.
// The rules are evaluated in priority order and the first match wins; ties
// inside a rule ("first cancelled", "first instance") resolve by batch
// order as received.
func Analyze(events []*calendar.Event) (Action, error) {
	if len(events) == 0 {
		return nil, errs.Developerf("analyze: called with empty payload")
	}

	// 1. A lone base event announces a new series.
	if len(events) == 1 && isBase(events[0]) {
		return CreateSeries{Base: events[0]}, nil
	}

	var base *calendar.Event
	for _, e := range events {
		if isBase(e) {
			base = e
			break
		}
	}

	// 2. No surviving base and everything cancelled: the series is gone.
	if base == nil {
		allCancelled := true
		for _, e := range events {
			if !isCancelled(e) {
				allCancelled = false
				break
			}
		}
		if allCancelled {
			return DeleteSeries{Cancelled: events}, nil
		}
	}

	var firstCancelled *calendar.Event
	for _, e := range events {
		if isCancelled(e) {
			firstCancelled = e
			break
		}
	}

	// 3. A base plus cancellations: occurrences were removed.
	if base != nil && firstCancelled != nil {
		return DeleteInstances{Base: base, Cancelled: firstCancelled}, nil
	}

	// 4. An UNTIL-truncated base plus an untruncated sibling base: a split.
	for _, e := range events {
		if !isBase(e) {
			continue
		}
		untilRule, ok := ruleWithUntil(e.Recurrence)
		if !ok {
			continue
		}
		for _, n := range events {
			if !isBase(n) || n.Id == e.Id {
				continue
			}
			if _, truncated := ruleWithUntil(n.Recurrence); truncated {
				continue
			}
			splitAt, ok := dates.Until(untilRule)
			if !ok {
				continue
			}
			hasInstances := false
			for _, ev := range events {
				if isInstance(ev) {
					hasInstances = true
					break
				}
			}
			return ModifySeries{Base: e, NewBase: n, SplitAt: splitAt, HasInstances: hasInstances}, nil
		}
	}

	// 5. A base plus instances that all reference it: a single-occurrence
	// edit.
	if base != nil {
		var firstInstance *calendar.Event
		sameBase := true
		for _, e := range events {
			if !isInstance(e) {
				continue
			}
			if firstInstance == nil {
				firstInstance = e
			}
			if e.RecurringEventId != base.Id {
				sameBase = false
			}
		}
		if firstInstance != nil && sameBase {
			return UpdateInstance{Base: base, Instance: firstInstance}, nil
		}
	}

	return nil, errs.Developerf("analyze: not all cases were handled")
}
