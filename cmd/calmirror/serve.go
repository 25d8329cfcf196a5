package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/robfig/cron/v3"

	"github.com/calmirror/calmirror/internal/config"
	applog "github.com/calmirror/calmirror/internal/log"
	"github.com/calmirror/calmirror/internal/notify"
)

// serve runs the mirror as a daemon: a cron-scheduled poll loop feeding the
// reconciler, with changes pushed to websocket subscribers on /ws.
func serve(cfg *config.Config) {
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer st.Close()

	hub := notify.NewHub()
	ctx := context.Background()

	c := cron.New()
	_, err = c.AddFunc(cfg.General.PollCron, func() {
		changes, err := runSync(ctx, cfg, st)
		if err != nil {
			applog.Errorf("sync cycle failed", err)
		}
		// Partial results still notify; the failed remainder is retried
		// next cycle.
		hub.Publish(changes)
	})
	if err != nil {
		log.Fatalf("Error scheduling poll (cron %q): %v", cfg.General.PollCron, err)
	}
	c.Start()
	defer c.Stop()

	http.Handle("/ws", hub)
	fmt.Printf("🚀 Mirror serving on %s (poll schedule: %s)\n", cfg.General.Listen, cfg.General.PollCron)
	log.Fatal(http.ListenAndServe(cfg.General.Listen, nil))
}
