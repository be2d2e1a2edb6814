package memory

import (
	"time"

	"ai-refinery-be/internal/repository/contract"
	"ai-refinery-be/pkg/companion"

	"github.com/patrickmn/go-cache"
)

type PendingOperationRepository struct {
	cache *cache.Cache
}

// NewPendingOperationRepository creates the in-process nonce registry.
// Entries expire on their own after 15 minutes so an abandoned client
// request cannot pin memory forever.
func NewPendingOperationRepository() contract.PendingOperationRepository {
	c := cache.New(15*time.Minute, 5*time.Minute)
	return &PendingOperationRepository{
		cache: c,
	}
}

func pendingKey(sessionID string, phase companion.Phase, contentHash string) string {
	return sessionID + ":" + string(phase) + ":" + contentHash
}

func (r *PendingOperationRepository) Put(sessionID string, phase companion.Phase, contentHash string) (string, error) {
	nonce, err := companion.NewNonce()
	if err != nil {
		return "", err
	}
	r.cache.Set(pendingKey(sessionID, phase, contentHash), nonce, cache.DefaultExpiration)
	return nonce, nil
}

func (r *PendingOperationRepository) Consume(sessionID string, phase companion.Phase, contentHash, nonce string) error {
	key := pendingKey(sessionID, phase, contentHash)

	value, found := r.cache.Get(key)
	if !found {
		return companion.ErrNoPendingOperation
	}

	stored, ok := value.(string)
	if !ok || !companion.NonceEqual(stored, nonce) {
		// The entry stays: a mismatched caller must not burn someone
		// else's pending request.
		return companion.ErrNonceMismatch
	}

	r.cache.Delete(key)
	return nil
}
