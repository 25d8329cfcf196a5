package main

import (
	"fmt"
	"log"
	"os"

	"github.com/calmirror/calmirror/internal/config"
	"github.com/calmirror/calmirror/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: calmirror (add|list|remove|sync|serve|export)")
		os.Exit(1)
	}
	cfg, err := config.Read(".calmirror.toml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	command := os.Args[1]
	switch command {
	case "add":
		addCalendar(cfg)
	case "list":
		listCalendars(cfg)
	case "remove":
		removeCalendar(cfg)
	case "sync":
		syncCalendars(cfg)
	case "serve":
		serve(cfg)
	case "export":
		exportCalendar(cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*store.SQLite, error) {
	// Try the dir where the config file was found, then the current dir.
	st, err := store.Open(config.Dir() + cfg.General.DBFile)
	if err != nil {
		return store.Open(cfg.General.DBFile)
	}
	return st, nil
}
