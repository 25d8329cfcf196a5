// Package ics renders stored calendars to an iCalendar stream, for export
// into other calendar tools.
package ics

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-ical"

	"github.com/calmirror/calmirror/internal/dates"
	"github.com/calmirror/calmirror/internal/event"
)

// Write encodes the given events as a VCALENDAR. Series are represented by
// their base event carrying the RRULE; materialized instances that merely
// repeat the base are skipped, while diverged ones would re-appear on the
// next import as exceptions, so they are written too.
func Write(w io.Writer, events []event.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText("VERSION", "2.0")
	cal.Props.SetText("PRODID", "-//calmirror//calendar mirror//EN")

	titles := baseTitles(events)

	for _, ev := range events {
		if ev.IsInstance() && ev.Title == titles[ev.BaseID()] {
			continue
		}
		comp, err := component(ev)
		if err != nil {
			return err
		}
		cal.Component.Children = append(cal.Component.Children, comp)
	}

	return ical.NewEncoder(w).Encode(cal)
}

func baseTitles(events []event.Event) map[string]string {
	titles := make(map[string]string)
	for _, ev := range events {
		if ev.IsBase() {
			titles[ev.ID] = ev.Title
		}
	}
	return titles
}

func component(ev event.Event) (*ical.Component, error) {
	icalEvent := ical.NewEvent()

	uid := ev.GEventID
	if uid == "" {
		uid = ev.ID
	}
	icalEvent.Component.Props.SetText("UID", uid)
	icalEvent.Component.Props.SetText("SUMMARY", ev.Title)
	if ev.Description != "" {
		icalEvent.Component.Props.SetText("DESCRIPTION", ev.Description)
	}

	start, _, ok := dates.ParseStored(ev.StartDate)
	if !ok {
		return nil, fmt.Errorf("event %s: unparseable start date %q", ev.ID, ev.StartDate)
	}
	end, _, ok := dates.ParseStored(ev.EndDate)
	if !ok {
		return nil, fmt.Errorf("event %s: unparseable end date %q", ev.ID, ev.EndDate)
	}
	icalEvent.Component.Props.SetDateTime("DTSTART", start)
	icalEvent.Component.Props.SetDateTime("DTEND", end)

	for _, rule := range ev.Rules() {
		// RRULE values are RECUR, not TEXT; set the raw value so no
		// VALUE= parameter sneaks in.
		p := ical.NewProp("RRULE")
		p.Value = strings.TrimPrefix(rule, "RRULE:")
		icalEvent.Component.Props.Add(p)
	}

	return icalEvent.Component, nil
}
