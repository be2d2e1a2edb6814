package contract

import (
	"ai-refinery-be/pkg/companion"
)

// PendingOperationRepository tracks client-execution requests awaiting their
// completion call. Entries live in process memory only: losing them on
// restart just forces the client to re-request, while persisting them would
// risk honoring a nonce across a state rollback.
type PendingOperationRepository interface {
	// Put registers a pending operation and returns its freshly minted nonce.
	// A repeated Put for the same key replaces the previous nonce.
	Put(sessionID string, phase companion.Phase, contentHash string) (string, error)

	// Consume validates and removes the entry exactly once. It fails with
	// ErrNoPendingOperation when no entry matches the key and with
	// ErrNonceMismatch when the nonce differs; a mismatch leaves the entry
	// in place.
	Consume(sessionID string, phase companion.Phase, contentHash, nonce string) error
}
