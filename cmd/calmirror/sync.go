package main

import (
	"context"
	"fmt"
	"log"

	"github.com/calmirror/calmirror/internal/config"
	"github.com/calmirror/calmirror/internal/gcal"
	"github.com/calmirror/calmirror/internal/gsync"
	"github.com/calmirror/calmirror/internal/recur"
	"github.com/calmirror/calmirror/internal/store"
)

func syncCalendars(cfg *config.Config) {
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer st.Close()

	fmt.Println("🚀 Starting calendar synchronization...")
	changes, err := runSync(context.Background(), cfg, st)
	if err != nil {
		log.Fatalf("Error syncing calendars: %v", err)
	}

	for _, ch := range changes {
		fmt.Printf("  ✨ %s: %s (%s)\n", ch.Operation, ch.Title, ch.Category)
	}
	fmt.Println("✅ Calendar synchronization completed successfully!")
}

// runSync polls every mirrored calendar for changes since its last sync
// token and reconciles them into the store.
func runSync(ctx context.Context, cfg *config.Config, st *store.SQLite) ([]gsync.Change, error) {
	processor := gsync.NewProcessor(st, recur.New(cfg.General.MaxRecurrences))
	oauthConfig := gcal.OAuthConfig(cfg.General.ClientID, cfg.General.ClientSecret)

	cals, err := st.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading calendar registry: %w", err)
	}

	clients := make(map[string]*gcal.Client)
	var all []gsync.Change
	for _, cal := range cals {
		fmt.Printf("  ↪️ Syncing calendar: %s (%s)\n", cal.ID, cal.User)

		client, ok := clients[cal.User]
		if !ok {
			httpClient, err := gcal.HTTPClient(ctx, oauthConfig, st, cal.User)
			if err != nil {
				return all, fmt.Errorf("authenticating account %s: %w", cal.User, err)
			}
			client, err = gcal.NewClient(ctx, httpClient)
			if err != nil {
				return all, fmt.Errorf("creating client for account %s: %w", cal.User, err)
			}
			clients[cal.User] = client
		}

		events, nextToken, err := client.Changes(cal.ID, cal.SyncToken)
		if err == gcal.ErrSyncTokenExpired {
			fmt.Printf("    ❗️ Sync token expired for %s, re-listing from scratch\n", cal.ID)
			events, nextToken, err = client.Changes(cal.ID, "")
		}
		if err != nil {
			return all, fmt.Errorf("polling calendar %s: %w", cal.ID, err)
		}

		if len(events) > 0 {
			changes, err := processor.ProcessEvents(ctx, []gsync.SyncItem{{
				User:     cal.User,
				Calendar: cal.ID,
				Payload:  events,
			}})
			all = append(all, changes...)
			if err != nil {
				return all, fmt.Errorf("processing events for calendar %s: %w", cal.ID, err)
			}
		}

		if nextToken != "" {
			if err := st.SetSyncToken(ctx, cal.User, cal.ID, nextToken); err != nil {
				return all, fmt.Errorf("saving sync token for calendar %s: %w", cal.ID, err)
			}
		}
	}
	return all, nil
}
