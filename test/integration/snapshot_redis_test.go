package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-refinery-be/internal/model"
	"ai-refinery-be/internal/repository/implementation"
	"ai-refinery-be/pkg/companion"
)

func TestRedisSnapshotStore(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("Skipping integration test: REDIS_URL not set")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	repo := implementation.NewRedisSnapshotRepository(rdb)
	sessionID := "it-redis-" + uuid.NewString()
	defer func() {
		_ = repo.Delete(ctx, sessionID)
	}()

	t.Run("Save And Load Roundtrip", func(t *testing.T) {
		comp := companion.New("triage", companion.SamplingConfig{Model: "it-model"})
		comp.StartSlot("what broke?", "the cache broke", "it-model", comp.Sampling)
		comp.CurrentSlot().CommitCritique("name the cache", comp.Sampling)

		require.NoError(t, repo.Save(ctx, &model.SessionSnapshot{
			SessionID:  sessionID,
			Companions: map[string]*companion.Companion{"triage": comp},
		}))

		loaded, err := repo.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		require.Contains(t, loaded.Companions, "triage")
		slot := loaded.Companions["triage"].CurrentSlot()
		require.NotNil(t, slot)
		assert.Equal(t, "the cache broke", slot.Draft)
		assert.Equal(t, []string{"name the cache"}, slot.Critiques)
		t.Log("Snapshot roundtrip through Redis OK")
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, &model.SessionSnapshot{
			SessionID:  sessionID,
			Companions: map[string]*companion.Companion{},
		}))

		loaded, err := repo.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Empty(t, loaded.Companions)
	})

	t.Run("Load Missing Returns Nil", func(t *testing.T) {
		loaded, err := repo.Load(ctx, "it-redis-"+uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Delete Removes The Key", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, sessionID))
		loaded, err := repo.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})
}
