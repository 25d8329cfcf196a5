package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/calmirror/calmirror/internal/config"
	"github.com/calmirror/calmirror/internal/gcal"
)

func addCalendar(cfg *config.Config) {
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer st.Close()

	fmt.Println("🚀 Starting calendar addition...")
	fmt.Print("👤 Enter account name: ")
	var accountName string
	fmt.Scanln(&accountName)

	fmt.Print("📅 Enter calendar ID: ")
	reader := bufio.NewReader(os.Stdin)
	calendarID, _ := reader.ReadString('\n')
	calendarID = strings.TrimSpace(calendarID)

	ctx := context.Background()
	oauthConfig := gcal.OAuthConfig(cfg.General.ClientID, cfg.General.ClientSecret)
	httpClient, err := gcal.HTTPClient(ctx, oauthConfig, st, accountName)
	if err != nil {
		log.Fatalf("Error authenticating account %s: %v", accountName, err)
	}
	client, err := gcal.NewClient(ctx, httpClient)
	if err != nil {
		log.Fatalf("Error creating calendar client: %v", err)
	}
	if err := client.ValidateCalendar(calendarID); err != nil {
		log.Fatalf("Error retrieving calendar: %v", err)
	}

	if err := st.AddCalendar(ctx, accountName, calendarID); err != nil {
		log.Fatalf("Error saving calendar ID: %v", err)
	}

	fmt.Printf("✅ Calendar %s added successfully for account %s\n", calendarID, accountName)
}
