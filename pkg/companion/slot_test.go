package companion

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitCritiqueAppendsWhenBalanced(t *testing.T) {
	slot := NewSlot("q", "draft v1", "server", SamplingConfig{})

	slot.CommitCritique("too vague", SamplingConfig{})

	assert.Equal(t, []string{"too vague"}, slot.Critiques)
	assert.Empty(t, slot.Revisions)
}

func TestCommitCritiqueOverwritesUnconsumedCritique(t *testing.T) {
	slot := NewSlot("q", "draft v1", "server", SamplingConfig{})
	slot.CommitCritique("first take", SamplingConfig{})

	// Re-critiquing before any revision replaces the outstanding critique.
	slot.CommitCritique("second take", SamplingConfig{})

	assert.Equal(t, []string{"second take"}, slot.Critiques)
	assert.Empty(t, slot.Revisions)
}

func TestCommitRevisionAppendsAgainstOutstandingCritique(t *testing.T) {
	slot := NewSlot("q", "draft v1", "server", SamplingConfig{})
	slot.CommitCritique("too vague", SamplingConfig{})

	slot.CommitRevision("draft v2", SamplingConfig{})

	assert.Equal(t, []string{"draft v2"}, slot.Revisions)
	assert.True(t, slot.Balanced())
}

func TestCommitRevisionOverwritesWhenBalanced(t *testing.T) {
	slot := NewSlot("q", "draft v1", "server", SamplingConfig{})
	slot.CommitCritique("too vague", SamplingConfig{})
	slot.CommitRevision("draft v2", SamplingConfig{})

	slot.CommitRevision("draft v2 polished", SamplingConfig{})

	assert.Equal(t, []string{"too vague"}, slot.Critiques)
	assert.Equal(t, []string{"draft v2 polished"}, slot.Revisions)
}

func TestCritiqueAndReviseTargets(t *testing.T) {
	slot := NewSlot("q", "draft v1", "server", SamplingConfig{})
	assert.Equal(t, "draft v1", slot.CritiqueTarget())

	slot.CommitCritique("c1", SamplingConfig{})
	// The first revision always rewrites the draft.
	assert.Equal(t, "draft v1", slot.ReviseTarget())

	slot.CommitRevision("draft v2", SamplingConfig{})
	assert.Equal(t, "draft v2", slot.CritiqueTarget())

	slot.CommitCritique("c2", SamplingConfig{})
	// Later revisions rewrite the newest revision.
	assert.Equal(t, "draft v2", slot.ReviseTarget())

	slot.CommitRevision("draft v3", SamplingConfig{})
	assert.Equal(t, "draft v3", slot.FinalAnswer())
}

// Random legal operation sequences must never break the array balance:
// revisions never outnumber critiques, critiques lead by at most one.
func TestArrayBalanceHoldsUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		slot := NewSlot("q", "draft", "server", SamplingConfig{})

		for op := 0; op < 50; op++ {
			switch rng.Intn(3) {
			case 0:
				if _, err := ValidateDraft(slot, "q", "server"); err == nil {
					slot.CommitDraft(fmt.Sprintf("draft %d", op), "server", SamplingConfig{})
				}
			case 1:
				if err := ValidateCritique(slot); err == nil {
					slot.CommitCritique(fmt.Sprintf("critique %d", op), SamplingConfig{})
				}
			case 2:
				if err := ValidateRevise(slot); err == nil {
					slot.CommitRevision(fmt.Sprintf("revision %d", op), SamplingConfig{})
				}
			}

			balanced := len(slot.Revisions) <= len(slot.Critiques) &&
				len(slot.Critiques) <= len(slot.Revisions)+1
			require.True(t, balanced,
				"run %d op %d: critiques=%d revisions=%d", run, op, len(slot.Critiques), len(slot.Revisions))
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	slot := NewSlot("q", "draft", "server", SamplingConfig{})
	slot.CommitCritique("c1", SamplingConfig{})
	score := 0.95
	slot.SimilarityScore = &score

	clone := slot.Clone()
	clone.CommitCritique("changed", SamplingConfig{})
	*clone.SimilarityScore = 0.5

	assert.Equal(t, []string{"c1"}, slot.Critiques)
	assert.Equal(t, 0.95, *slot.SimilarityScore)
}
