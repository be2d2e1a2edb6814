package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"ai-refinery-be/internal/repository/contract"
	"ai-refinery-be/internal/repository/implementation"
	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: inspect_session <session-id>")
	}
	sessionID := os.Args[1]

	repo := openSnapshotRepo()

	snapshot, err := repo.Load(context.Background(), sessionID)
	if err != nil {
		log.Fatalf("Error: Failed to load snapshot: %v", err)
	}
	if snapshot == nil {
		log.Fatalf("No snapshot stored for session %s", sessionID)
	}

	color.Cyan("🔍 SESSION %s", snapshot.SessionID)
	fmt.Printf("created_at:    %s\n", snapshot.CreatedAt)
	fmt.Printf("last_accessed: %s\n", snapshot.LastAccessed)

	kinds := make([]string, 0, len(snapshot.Companions))
	for kind := range snapshot.Companions {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		comp := snapshot.Companions[kind]
		color.Yellow("\nCOMPANION %s: %d slot(s), %d history message(s)", kind, len(comp.Slots), len(comp.History))

		for i, slot := range comp.Slots {
			color.Green("\n─ Slot %d (variant %s, %d critique(s), %d revision(s)) ─", i+1, slot.Variant, len(slot.Critiques), len(slot.Revisions))
			fmt.Println(companion.Transcript(slot))
		}
	}
}

// openSnapshotRepo picks the same store the daemon would: Postgres when a
// DSN is configured, Redis otherwise.
func openSnapshotRepo() contract.SnapshotRepository {
	if dsn := os.Getenv("DB_CONNECTION_STRING"); dsn != "" {
		db, err := database.NewGormDBFromDSN(dsn)
		if err != nil {
			log.Fatalf("Error: Failed to connect to database: %v", err)
		}
		return implementation.NewGormSnapshotRepository(db)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Error: Failed to connect to Redis: %v", err)
	}
	return implementation.NewRedisSnapshotRepository(rdb)
}
