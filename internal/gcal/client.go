// Package gcal wraps the Google Calendar API surface the mirror needs: event
// lookup, windowed listing, and incremental change polling with sync tokens.
// Events cross this boundary in the provider's own representation
// (*calendar.Event); classification happens downstream.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrSyncTokenExpired signals that the provider invalidated our incremental
// sync token and a full re-list is required.
var ErrSyncTokenExpired = errors.New("sync token expired")

type Client struct {
	svc *calendar.Service
}

func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ValidateCalendar checks that the calendar exists and is accessible.
func (c *Client) ValidateCalendar(calendarID string) error {
	_, err := c.svc.CalendarList.Get(calendarID).Do()
	if err != nil {
		return fmt.Errorf("getting calendar %s: %w", calendarID, err)
	}
	return nil
}

func (c *Client) GetEvent(calendarID, eventID string) (*calendar.Event, error) {
	ev, err := c.svc.Events.Get(calendarID, eventID).Do()
	if err != nil {
		return nil, fmt.Errorf("getting event %s: %w", eventID, err)
	}
	return ev, nil
}

func (c *Client) ListEvents(calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var out []*calendar.Event
	pageToken := ""
	for {
		call := c.svc.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			ShowDeleted(true)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing events: %w", err)
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// Changes returns the events changed since syncToken was issued, plus the
// token for the next poll. An empty syncToken performs the initial full
// listing. Cancelled events are included; recurring series come back as base
// events plus exception instances, exactly the batches the analyzer
// classifies.
func (c *Client) Changes(calendarID, syncToken string) ([]*calendar.Event, string, error) {
	var out []*calendar.Event
	pageToken := ""
	for {
		call := c.svc.Events.List(calendarID).ShowDeleted(true)
		if syncToken != "" {
			call = call.SyncToken(syncToken)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusGone {
				return nil, "", ErrSyncTokenExpired
			}
			return nil, "", fmt.Errorf("listing changes: %w", err)
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, page.NextSyncToken, nil
		}
		pageToken = page.NextPageToken
	}
}
