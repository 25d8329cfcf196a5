package main

import (
	"context"
	"fmt"
	"log"

	"github.com/calmirror/calmirror/internal/config"
	"github.com/calmirror/calmirror/internal/store"
)

func removeCalendar(cfg *config.Config) {
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer st.Close()

	fmt.Println("🚀 Starting calendar removal...")

	fmt.Print("👤 Enter account name: ")
	var accountName string
	fmt.Scanln(&accountName)

	fmt.Print("📅 Enter calendar ID to remove: ")
	var calendarID string
	fmt.Scanln(&calendarID)

	fmt.Print("⚠️  Are you sure you want to remove this calendar and its mirrored events? (y/N): ")
	var confirmation string
	fmt.Scanln(&confirmation)
	if confirmation != "y" && confirmation != "Y" {
		fmt.Println("❌ Calendar removal cancelled")
		return
	}

	ctx := context.Background()
	deleted, err := st.DeleteMany(ctx, store.Filter{User: accountName, Calendar: calendarID})
	if err != nil {
		log.Fatalf("Error deleting mirrored events: %v", err)
	}
	if err := st.RemoveCalendar(ctx, accountName, calendarID); err != nil {
		log.Fatalf("Error deleting calendar registration: %v", err)
	}

	fmt.Printf("✅ Calendar %s removed successfully (%d events deleted)\n", calendarID, deleted)
}
