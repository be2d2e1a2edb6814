package companion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCritique(t *testing.T) {
	assert.ErrorIs(t, ValidateCritique(nil), ErrNoDraft)
	assert.ErrorIs(t, ValidateCritique(&Slot{Query: "q"}), ErrNoDraft)
	assert.NoError(t, ValidateCritique(NewSlot("q", "draft", "server", SamplingConfig{})))
}

func TestValidateRevise(t *testing.T) {
	assert.ErrorIs(t, ValidateRevise(nil), ErrNoDraft)

	slot := NewSlot("q", "draft", "server", SamplingConfig{})
	assert.ErrorIs(t, ValidateRevise(slot), ErrNoCritique)

	slot.CommitCritique("c1", SamplingConfig{})
	assert.NoError(t, ValidateRevise(slot))

	slot.CommitRevision("r1", SamplingConfig{})
	// Balanced counts leave nothing new to revise against.
	assert.ErrorIs(t, ValidateRevise(slot), ErrAlreadyBalanced)
}

func TestValidateDraftDecisions(t *testing.T) {
	t.Run("first draft needs a query", func(t *testing.T) {
		_, err := ValidateDraft(nil, "", "server")
		require.Error(t, err)
		assert.Equal(t, CodeInvalidRequest, CodeOf(err))
	})

	t.Run("no slot starts fresh", func(t *testing.T) {
		dec, err := ValidateDraft(nil, "q", "server")
		require.NoError(t, err)
		assert.True(t, dec.Fresh)
		assert.Equal(t, "q", dec.Query)
	})

	t.Run("new query starts fresh even with revisions", func(t *testing.T) {
		slot := NewSlot("q", "draft", "server", SamplingConfig{})
		slot.CommitCritique("c1", SamplingConfig{})
		slot.CommitRevision("r1", SamplingConfig{})

		dec, err := ValidateDraft(slot, "another question", "server")
		require.NoError(t, err)
		assert.True(t, dec.Fresh)
	})

	t.Run("new variant starts fresh", func(t *testing.T) {
		slot := NewSlot("q", "draft", "server", SamplingConfig{})
		dec, err := ValidateDraft(slot, "q", ClientVariant)
		require.NoError(t, err)
		assert.True(t, dec.Fresh)
	})

	t.Run("same query without revisions overwrites", func(t *testing.T) {
		slot := NewSlot("q", "draft", "server", SamplingConfig{})
		slot.CommitCritique("c1", SamplingConfig{})

		dec, err := ValidateDraft(slot, "q", "server")
		require.NoError(t, err)
		assert.False(t, dec.Fresh)
		assert.True(t, dec.Overwrite)
	})

	t.Run("blank query reuses the slot query", func(t *testing.T) {
		slot := NewSlot("q", "draft", "server", SamplingConfig{})
		dec, err := ValidateDraft(slot, "", "server")
		require.NoError(t, err)
		assert.Equal(t, "q", dec.Query)
		assert.True(t, dec.Overwrite)
	})

	t.Run("revisions block a same-query redraft", func(t *testing.T) {
		slot := NewSlot("q", "draft", "server", SamplingConfig{})
		slot.CommitCritique("c1", SamplingConfig{})
		slot.CommitRevision("r1", SamplingConfig{})

		_, err := ValidateDraft(slot, "q", "server")
		assert.ErrorIs(t, err, ErrRevisionsExist)

		_, err = ValidateDraft(slot, "", "server")
		assert.ErrorIs(t, err, ErrRevisionsExist)
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNoDraft, CodeOf(ErrNoDraft))
	assert.Equal(t, CodeBackendFailure, CodeOf(WrapBackend("draft", assert.AnError)))
	assert.Equal(t, CodeInvalidRequest, CodeOf(assert.AnError))
}
