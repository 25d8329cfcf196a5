package main

import (
	"context"
	"fmt"
	"log"

	"github.com/calmirror/calmirror/internal/config"
	"github.com/calmirror/calmirror/internal/store"
)

func listCalendars(cfg *config.Config) {
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	fmt.Println("📋 Here's the list of calendars you are mirroring:")

	cals, err := st.Calendars(ctx)
	if err != nil {
		log.Fatalf("❌ Error retrieving calendars from database: %v", err)
	}

	for _, cal := range cals {
		events, err := st.Find(ctx, store.Filter{User: cal.User, Calendar: cal.ID})
		if err != nil {
			log.Fatalf("❌ Error counting events for calendar %s: %v", cal.ID, err)
		}
		fmt.Printf("  👤 %s (📅 %s) - %d events\n", cal.User, cal.ID, len(events))
	}
}
