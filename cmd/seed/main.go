package main

import (
	"context"
	"log"
	"os"
	"time"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/internal/repository/implementation"
	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&model.SessionSnapshotRecord{}); err != nil {
		log.Fatal("Error: Failed to migrate session_snapshots:", err)
	}

	repo := implementation.NewGormSnapshotRepository(db)
	ctx := context.Background()

	log.Println("Seeding demo refinement sessions...")

	for _, snapshot := range demoSnapshots() {
		existing, err := repo.Load(ctx, snapshot.SessionID)
		if err != nil {
			log.Fatalf("Failed to check session '%s': %v", snapshot.SessionID, err)
		}
		if existing != nil {
			log.Printf("Session '%s' already exists, skipping...", snapshot.SessionID)
			continue
		}

		if err := repo.Save(ctx, snapshot); err != nil {
			log.Fatalf("Failed to seed session '%s': %v", snapshot.SessionID, err)
		}
		log.Printf("Seeded session '%s'", snapshot.SessionID)
	}

	log.Println("Seeding complete.")
}

// demoSnapshots builds two fixture sessions: one converged run and one
// still waiting on its first revision. Both render cleanly through the
// transcript and runlog operations.
func demoSnapshots() []*model.SessionSnapshot {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	converged := companion.New(companion.KindGeneric, companion.SamplingConfig{
		Model:               "demo-model",
		Temperature:         0.7,
		MaxLoops:            3,
		SimilarityThreshold: 0.98,
	})
	slot := converged.StartSlot(
		"Explain why write-through caches simplify recovery.",
		"Write-through caches push every write to the backing store immediately, so the store is always current.",
		"demo-model",
		converged.Sampling,
	)
	slot.CommitCritique("State the recovery consequence explicitly instead of implying it.", converged.Sampling)
	slot.CommitRevision("Write-through caches push every write to the backing store immediately, so after a crash the store already holds the latest data and no replay is needed.", converged.Sampling)
	slot.CommitCritique("The draft is sound and requires no further improvements.", converged.Sampling)
	score := 0.9912
	slot.SimilarityScore = &score
	converged.AppendExchange(slot.Query, slot.FinalAnswer())

	inFlight := companion.New(companion.KindTriage, companion.SamplingConfig{
		Model:               "demo-model",
		Temperature:         0.7,
		MaxLoops:            3,
		SimilarityThreshold: 0.98,
	})
	open := inFlight.StartSlot(
		"Checkout latency doubled after the 14:00 deploy. First steps?",
		"Roll back the deploy, then compare p99 latency before and after.",
		"demo-model",
		inFlight.Sampling,
	)
	open.CommitCritique("Ordering is wrong for triage: confirm the regression window before rolling back.", inFlight.Sampling)

	return []*model.SessionSnapshot{
		{
			SessionID:    "demo-refine-converged",
			CreatedAt:    now,
			LastAccessed: now,
			Companions:   map[string]*companion.Companion{companion.KindGeneric: converged},
		},
		{
			SessionID:    "demo-refine-in-flight",
			CreatedAt:    now,
			LastAccessed: now,
			Companions:   map[string]*companion.Companion{companion.KindTriage: inFlight},
		},
	}
}
