package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("DB_CONNECTION_STRING is not set")
	}

	retentionHours := 72
	if raw := os.Getenv("SNAPSHOT_RETENTION_HOURS"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			log.Fatalf("Invalid SNAPSHOT_RETENTION_HOURS: %q", raw)
		}
		retentionHours = parsed
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal(err)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(retentionHours) * time.Hour)
	log.Printf("Removing session snapshots idle since %s (retention %dh)...", cutoff.Format(time.RFC3339), retentionHours)

	// Snapshots are upserted on every session mutation, so updated_at is the
	// last time the session was touched. Hard delete, recovery data only.
	result := db.Where("updated_at < ?", cutoff).Delete(&model.SessionSnapshotRecord{})
	if result.Error != nil {
		log.Fatalf("Failed to delete: %v", result.Error)
	}

	log.Printf("Deleted %d rows.", result.RowsAffected)
}
