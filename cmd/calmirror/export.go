package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/calmirror/calmirror/internal/config"
	"github.com/calmirror/calmirror/internal/ics"
	"github.com/calmirror/calmirror/internal/store"
)

func exportCalendar(cfg *config.Config) {
	if len(os.Args) < 4 {
		fmt.Println("Usage: calmirror export <account> <calendar-id>")
		os.Exit(1)
	}
	accountName, calendarID := os.Args[2], os.Args[3]

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer st.Close()

	events, err := st.Find(context.Background(), store.Filter{User: accountName, Calendar: calendarID})
	if err != nil {
		log.Fatalf("Error loading events for calendar %s: %v", calendarID, err)
	}

	if err := ics.Write(os.Stdout, events); err != nil {
		log.Fatalf("Error writing iCalendar stream: %v", err)
	}
}
