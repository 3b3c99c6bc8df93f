// Command migrate applies the local SQLite migrations and, when REMOTE_DSN
// is configured, the goose migrations of the remote Postgres mirror.
package main

import (
	"context"
	"log"
	"time"

	"workingonit/backend/internal/app"
	"workingonit/backend/internal/config"
	"workingonit/backend/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := app.OpenLocal(cfg.Local)
	if err != nil {
		log.Fatalf("local migrations: %v", err)
	}
	database.Close()
	log.Println("local migrations applied successfully")

	if !cfg.Remote.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := db.MigratePostgres(ctx, cfg.Remote.DSN)
	if err != nil {
		log.Fatalf("remote migrations: %v", err)
	}
	log.Printf("remote migrations applied: %d", applied)
}
