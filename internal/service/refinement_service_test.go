package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-refinery-be/internal/dto"
	"ai-refinery-be/internal/pkg/logger"
	"ai-refinery-be/internal/repository/memory"
	"ai-refinery-be/internal/session"
	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/embedding"
	"ai-refinery-be/pkg/llm"
	"ai-refinery-be/pkg/prompt"
	"ai-refinery-be/pkg/similarity"
)

// scriptedProvider serves canned phase outputs, recognizing the phase by the
// marker system prompts in testTemplates. Calls are counted per phase so
// tests can assert which generations actually ran.
type scriptedProvider struct {
	mu        sync.Mutex
	drafts    []string
	critiques []string
	revisions []string

	failPhase string

	draftCalls    int
	critiqueCalls int
	revisionCalls int
	lastOpts      llm.Options
}

var _ llm.LLMProvider = (*scriptedProvider)(nil)

func (p *scriptedProvider) Chat(_ context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := llm.Options{}
	for _, apply := range options {
		apply(&opts)
	}
	p.lastOpts = opts

	system := history[0].Content
	switch {
	case strings.HasPrefix(system, "draft-system"):
		if p.failPhase == "draft" {
			return "", errors.New("model unavailable")
		}
		p.draftCalls++
		return pick(p.drafts, p.draftCalls), nil
	case strings.HasPrefix(system, "critique-system"):
		if p.failPhase == "critique" {
			return "", errors.New("model unavailable")
		}
		p.critiqueCalls++
		return pick(p.critiques, p.critiqueCalls), nil
	case strings.HasPrefix(system, "revision-system"):
		if p.failPhase == "revise" {
			return "", errors.New("model unavailable")
		}
		p.revisionCalls++
		return pick(p.revisions, p.revisionCalls), nil
	}
	return "", fmt.Errorf("unrecognized system prompt: %q", system)
}

func (p *scriptedProvider) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	out, err := p.Chat(ctx, history, options...)
	if err != nil {
		return "", err
	}
	for _, token := range strings.SplitAfter(out, " ") {
		onToken(token)
	}
	return out, nil
}

func (p *scriptedProvider) Generate(ctx context.Context, promptText string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: promptText}}, options...)
}

func (p *scriptedProvider) options() llm.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOpts
}

func (p *scriptedProvider) calls() (drafts, critiques, revisions int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draftCalls, p.critiqueCalls, p.revisionCalls
}

func pick(texts []string, call int) string {
	if len(texts) == 0 {
		return fmt.Sprintf("text %d", call)
	}
	if call > len(texts) {
		return texts[len(texts)-1]
	}
	return texts[call-1]
}

// vectorStub returns a fixed vector per text so similarity outcomes are
// deterministic. Unmapped texts share one direction, which makes any two of
// them score 1.0.
type vectorStub struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failOn  string
}

var _ embedding.EmbeddingProvider = (*vectorStub)(nil)

func (v *vectorStub) Generate(text string, _ string) (*embedding.EmbeddingResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failOn != "" && text == v.failOn {
		return nil, errors.New("embedding backend offline")
	}
	vec, ok := v.vectors[text]
	if !ok {
		vec = []float32{1, 0}
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: vec},
	}, nil
}

// captureSink records published snapshot payloads instead of forwarding them.
type captureSink struct {
	mu       sync.Mutex
	payloads []string
}

var _ IPublisherService = (*captureSink)(nil)

func (c *captureSink) Publish(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, string(payload))
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *captureSink) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return ""
	}
	return c.payloads[len(c.payloads)-1]
}

func testTemplates() *prompt.Store {
	return prompt.NewStore(prompt.TemplateSet{
		InitialSystem:  "draft-system {context}",
		CritiqueSystem: "critique-system {context}",
		RevisionSystem: "revision-system {context}",
		CritiqueUser:   "REQUEST: {user_input}\nDRAFT: {draft}\n{prev_drafts}",
		RevisionUser:   "REQUEST: {user_input}\nDRAFT: {draft}\nCRITIQUE: {critique}",
	})
}

type serviceHarness struct {
	svc  IRefinementService
	bot  *scriptedProvider
	emb  *vectorStub
	sink *captureSink
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	bot := &scriptedProvider{}
	emb := &vectorStub{vectors: map[string][]float32{}}
	sink := &captureSink{}

	registry := companion.DefaultRegistry()
	generator := NewPhaseGenerator(testTemplates(), registry, bot, false)
	sessions := session.NewStore(session.Config{}, nil, logger.NewNopLogger())
	pending := memory.NewPendingOperationRepository()

	svc := NewRefinementService(
		sessions,
		pending,
		registry,
		generator,
		similarity.NewOracle(emb),
		sink,
		nil,
		"test-model",
		0.4,
	)

	return &serviceHarness{svc: svc, bot: bot, emb: emb, sink: sink}
}

func (h *serviceHarness) lastSlot(t *testing.T, sessionID string) dto.SlotDTO {
	t.Helper()
	resp, err := h.svc.GetRunLog(context.Background(), &dto.SessionQueryRequest{SessionID: sessionID})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Slots)
	return resp.Slots[len(resp.Slots)-1]
}

func TestRefinementService_DraftStartsSlot(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"cache the embeddings in redis"}

	resp, err := h.svc.Draft(context.Background(), &dto.DraftRequest{Query: "how should we cache embeddings?"})
	require.NoError(t, err)

	assert.Equal(t, dto.StatusOK, resp.Status)
	assert.Equal(t, "draft", resp.Phase)
	assert.Equal(t, "generic", resp.CompanionKind)
	assert.Equal(t, "cache the embeddings in redis", resp.Content)
	assert.Equal(t, "test-model", resp.Variant)
	assert.False(t, resp.Overwrote)
	assert.NotEmpty(t, resp.SessionID)

	assert.Equal(t, "test-model", resp.Sampling.Model)
	assert.InDelta(t, 0.4, resp.Sampling.Temperature, 1e-9)
	assert.Equal(t, 3, resp.Sampling.MaxLoops)
	assert.InDelta(t, 0.98, resp.Sampling.SimilarityThreshold, 1e-9)
	assert.Equal(t, "server", resp.Sampling.ExecutionMode)

	slot := h.lastSlot(t, resp.SessionID)
	assert.Equal(t, "how should we cache embeddings?", slot.Query)
	assert.Equal(t, "cache the embeddings in redis", slot.Draft)
	assert.Empty(t, slot.Critiques)
	assert.Empty(t, slot.Revisions)

	history, err := h.svc.GetHistory(context.Background(), &dto.SessionQueryRequest{SessionID: resp.SessionID})
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, companion.RoleHuman, history.Messages[0].Role)
	assert.Equal(t, "how should we cache embeddings?", history.Messages[0].Content)
	assert.Equal(t, companion.RoleAI, history.Messages[1].Role)
	assert.Equal(t, "cache the embeddings in redis", history.Messages[1].Content)
}

func TestRefinementService_DraftOverwritesUntilRevision(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"first take", "second take"}
	h.bot.critiques = []string{"mention the ttl"}
	h.bot.revisions = []string{"second take with a ttl"}
	ctx := context.Background()

	first, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "design the cache"})
	require.NoError(t, err)

	// A blank query re-enters the current slot and overwrites its draft.
	second, err := h.svc.Draft(ctx, &dto.DraftRequest{SessionID: first.SessionID})
	require.NoError(t, err)
	assert.True(t, second.Overwrote)
	assert.Equal(t, "second take", second.Content)

	slot := h.lastSlot(t, first.SessionID)
	assert.Equal(t, "design the cache", slot.Query)
	assert.Equal(t, "second take", slot.Draft)

	history, err := h.svc.GetHistory(ctx, &dto.SessionQueryRequest{SessionID: first.SessionID})
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "second take", history.Messages[1].Content)

	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: first.SessionID})
	require.NoError(t, err)
	_, err = h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: first.SessionID})
	require.NoError(t, err)

	// Once a revision exists the slot is locked against re-drafting.
	_, err = h.svc.Draft(ctx, &dto.DraftRequest{SessionID: first.SessionID, Query: "design the cache"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrRevisionsExist))

	locked := h.lastSlot(t, first.SessionID)
	assert.Equal(t, "second take", locked.Draft)
	require.Len(t, locked.Revisions, 1)

	// A different query starts a new slot instead.
	third, err := h.svc.Draft(ctx, &dto.DraftRequest{SessionID: first.SessionID, Query: "design the eviction policy"})
	require.NoError(t, err)
	assert.False(t, third.Overwrote)

	runLog, err := h.svc.GetRunLog(ctx, &dto.SessionQueryRequest{SessionID: first.SessionID})
	require.NoError(t, err)
	require.Len(t, runLog.Slots, 2)
	assert.Equal(t, "design the cache", runLog.Slots[0].Query)
	require.Len(t, runLog.Slots[0].Revisions, 1)
	assert.Equal(t, "design the eviction policy", runLog.Slots[1].Query)
}

func TestRefinementService_CritiqueAppendsAndOverwrites(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"the plan"}
	h.bot.critiques = []string{"needs concrete numbers", "cite the source", "tighten the intro"}
	h.bot.revisions = []string{"the plan with sources"}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "write the plan"})
	require.NoError(t, err)
	sid := draft.SessionID

	first, err := h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Iteration)
	assert.Equal(t, "needs concrete numbers", first.Content)
	assert.False(t, first.StopSignal)

	// Re-critiquing before a revision replaces the unanswered critique.
	second, err := h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Iteration)
	assert.Equal(t, "cite the source", second.Content)

	slot := h.lastSlot(t, sid)
	require.Len(t, slot.Critiques, 1)
	assert.Equal(t, "cite the source", slot.Critiques[0])

	revise, err := h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.NoError(t, err)
	assert.Equal(t, 1, revise.Iteration)
	assert.Equal(t, "the plan with sources", revise.Content)

	// Balanced counts again, so the next critique appends.
	third, err := h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Iteration)

	slot = h.lastSlot(t, sid)
	assert.Equal(t, []string{"cite the source", "tighten the intro"}, slot.Critiques)
	assert.Equal(t, []string{"the plan with sources"}, slot.Revisions)
}

func TestRefinementService_CritiqueFlagsStopPhrase(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"the final text"}
	h.bot.critiques = []string{"The draft is solid and requires no further improvements."}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "summarize the incident"})
	require.NoError(t, err)

	critique, err := h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: draft.SessionID})
	require.NoError(t, err)
	assert.True(t, critique.StopSignal)
}

func TestRefinementService_PhaseOrderGuards(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"a draft"}
	h.bot.critiques = []string{"a critique"}
	h.bot.revisions = []string{"a revision"}
	ctx := context.Background()

	_, err := h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: "fresh-session"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNoDraft))
	assert.Equal(t, companion.CodeNoDraft, companion.CodeOf(err))

	_, err = h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: "fresh-session"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNoDraft))

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{SessionID: "fresh-session", Query: "write it"})
	require.NoError(t, err)
	sid := draft.SessionID

	_, err = h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNoCritique))

	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	_, err = h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.NoError(t, err)

	_, err = h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrAlreadyBalanced))
}

func TestRefinementService_ReviseReportsSimilarity(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"v0"}
	h.bot.critiques = []string{"round one", "round two"}
	h.bot.revisions = []string{"v1", "v2"}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "iterate"})
	require.NoError(t, err)
	sid := draft.SessionID

	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	first, err := h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.NoError(t, err)
	assert.Nil(t, first.Similarity, "one revision has nothing to compare against")

	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	second, err := h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.NoError(t, err)

	require.NotNil(t, second.Similarity)
	assert.InDelta(t, 1.0, *second.Similarity, 1e-9)
	assert.True(t, second.Converged)
	assert.Empty(t, second.Warning)

	slot := h.lastSlot(t, sid)
	require.NotNil(t, slot.SimilarityScore)
	assert.InDelta(t, 1.0, *slot.SimilarityScore, 1e-9)
}

func TestRefinementService_ReviseSimilarityBelowThreshold(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"v0"}
	h.bot.critiques = []string{"round one", "round two"}
	h.bot.revisions = []string{"v1", "v2"}
	h.emb.vectors["v1"] = []float32{1, 0}
	h.emb.vectors["v2"] = []float32{0, 1}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "iterate"})
	require.NoError(t, err)
	sid := draft.SessionID

	for i := 0; i < 2; i++ {
		_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
		require.NoError(t, err)
		_, err = h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
		require.NoError(t, err)
	}

	slot := h.lastSlot(t, sid)
	require.NotNil(t, slot.SimilarityScore)
	assert.InDelta(t, 0.0, *slot.SimilarityScore, 1e-9)

	transcript, err := h.svc.GetTranscript(ctx, &dto.SessionQueryRequest{SessionID: sid})
	require.NoError(t, err)
	assert.Contains(t, transcript.Transcript, "v2")
}

func TestRefinementService_SimilarityFailureWarnsWithoutFailing(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"v0"}
	h.bot.critiques = []string{"round one", "round two"}
	h.bot.revisions = []string{"v1", "v2"}
	h.emb.failOn = "v1"
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "iterate"})
	require.NoError(t, err)
	sid := draft.SessionID

	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	_, err = h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.NoError(t, err)
	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)

	second, err := h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid})
	require.NoError(t, err, "the commit must survive a failing embedding backend")
	assert.Contains(t, second.Warning, "similarity computation failed")
	assert.Nil(t, second.Similarity)
	assert.False(t, second.Converged)

	slot := h.lastSlot(t, sid)
	assert.Len(t, slot.Revisions, 2)
	assert.Nil(t, slot.SimilarityScore)
}

func TestRefinementService_BackendFailureLeavesStateUntouched(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"a draft"}
	h.bot.failPhase = "draft"
	ctx := context.Background()

	_, err := h.svc.Draft(ctx, &dto.DraftRequest{SessionID: "s1", Query: "write it"})
	require.Error(t, err)
	assert.Equal(t, companion.CodeBackendFailure, companion.CodeOf(err))
	assert.Contains(t, err.Error(), "draft backend failure")

	runLog, err := h.svc.GetRunLog(ctx, &dto.SessionQueryRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, runLog.Slots)
	assert.Equal(t, 0, h.sink.count(), "no snapshot may be published for a failed phase")

	// The phase is retryable once the backend recovers.
	h.bot.failPhase = ""
	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{SessionID: "s1", Query: "write it"})
	require.NoError(t, err)
	assert.Equal(t, "a draft", draft.Content)

	h.bot.failPhase = "critique"
	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: "s1"})
	require.Error(t, err)
	assert.Equal(t, companion.CodeBackendFailure, companion.CodeOf(err))

	slot := h.lastSlot(t, "s1")
	assert.Empty(t, slot.Critiques)
}

func TestRefinementService_ClientDraftRoundTrip(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	clientMode := &dto.SamplingConfigDTO{ExecutionMode: "client"}

	pending, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "plan the rollout", Sampling: clientMode})
	require.NoError(t, err)

	assert.Equal(t, dto.StatusClientExecutionRequired, pending.Status)
	assert.Equal(t, "draft", pending.Phase)
	assert.True(t, strings.HasPrefix(pending.SystemPrompt, "draft-system"))
	assert.Equal(t, "plan the rollout", pending.UserPrompt)
	assert.NotEmpty(t, pending.Nonce)
	assert.Equal(t, "client", pending.Sampling.ExecutionMode)

	runLog, err := h.svc.GetRunLog(ctx, &dto.SessionQueryRequest{SessionID: pending.SessionID})
	require.NoError(t, err)
	assert.Empty(t, runLog.Slots, "nothing commits until the completion call")

	drafts, critiques, revisions := h.bot.calls()
	assert.Zero(t, drafts+critiques+revisions, "client mode must not call the server's generator")

	done, err := h.svc.DraftComplete(ctx, &dto.DraftCompleteRequest{
		SessionID: pending.SessionID,
		Query:     "plan the rollout",
		Draft:     "rollout in three waves",
		Nonce:     pending.Nonce,
	})
	require.NoError(t, err)
	assert.Equal(t, dto.StatusOK, done.Status)
	assert.Equal(t, "rollout in three waves", done.Content)
	assert.Equal(t, companion.ClientVariant, done.Variant)

	slot := h.lastSlot(t, pending.SessionID)
	assert.Equal(t, "rollout in three waves", slot.Draft)
	assert.Equal(t, companion.ClientVariant, slot.Variant)

	// The nonce is single-use.
	_, err = h.svc.DraftComplete(ctx, &dto.DraftCompleteRequest{
		SessionID: pending.SessionID,
		Query:     "plan the rollout",
		Draft:     "rollout in three waves",
		Nonce:     pending.Nonce,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNoPendingOperation))
}

func TestRefinementService_ClientNonceProtocol(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()
	clientMode := &dto.SamplingConfigDTO{ExecutionMode: "client"}

	pending, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "query alpha", Sampling: clientMode})
	require.NoError(t, err)
	sid := pending.SessionID

	// Wrong nonce: rejected, and the pending entry survives.
	_, err = h.svc.DraftComplete(ctx, &dto.DraftCompleteRequest{
		SessionID: sid, Query: "query alpha", Draft: "text", Nonce: "forged",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNonceMismatch))

	// Wrong content: the pending key binds the nonce to the original query.
	_, err = h.svc.DraftComplete(ctx, &dto.DraftCompleteRequest{
		SessionID: sid, Query: "query beta", Draft: "text", Nonce: pending.Nonce,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNoPendingOperation))

	// Neither failure burned the entry.
	done, err := h.svc.DraftComplete(ctx, &dto.DraftCompleteRequest{
		SessionID: sid, Query: "query alpha", Draft: "text", Nonce: pending.Nonce,
	})
	require.NoError(t, err)
	assert.Equal(t, dto.StatusOK, done.Status)
}

func TestRefinementService_PendingOperationsKeyedByPhase(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	pending, err := h.svc.Draft(ctx, &dto.DraftRequest{
		Query:    "shared content",
		Sampling: &dto.SamplingConfigDTO{ExecutionMode: "client"},
	})
	require.NoError(t, err)

	// Same session, same content hash, wrong phase: the draft nonce cannot
	// complete a critique.
	_, err = h.svc.CritiqueComplete(ctx, &dto.CritiqueCompleteRequest{
		SessionID: pending.SessionID,
		Draft:     "shared content",
		Critique:  "irrelevant",
		Nonce:     pending.Nonce,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNoPendingOperation))
}

func TestRefinementService_ClientCritiqueAndRevise(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"draft one"}
	ctx := context.Background()
	clientMode := &dto.SamplingConfigDTO{ExecutionMode: "client"}

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "explain the outage"})
	require.NoError(t, err)
	sid := draft.SessionID

	pendingCritique, err := h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid, Sampling: clientMode})
	require.NoError(t, err)
	assert.Equal(t, dto.StatusClientExecutionRequired, pendingCritique.Status)
	assert.True(t, strings.HasPrefix(pendingCritique.SystemPrompt, "critique-system"))
	assert.Contains(t, pendingCritique.UserPrompt, "DRAFT: draft one")
	assert.Contains(t, pendingCritique.UserPrompt, "[ORIGINAL BASELINE]")

	critique, err := h.svc.CritiqueComplete(ctx, &dto.CritiqueCompleteRequest{
		SessionID: sid,
		Draft:     "draft one",
		Critique:  "name the failing component",
		Nonce:     pendingCritique.Nonce,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, critique.Iteration)
	assert.Equal(t, companion.ClientVariant, critique.Variant)

	pendingRevise, err := h.svc.Revise(ctx, &dto.ReviseRequest{SessionID: sid, Sampling: clientMode})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pendingRevise.SystemPrompt, "revision-system"))
	assert.Contains(t, pendingRevise.UserPrompt, "CRITIQUE: name the failing component")

	revise, err := h.svc.ReviseComplete(ctx, &dto.ReviseCompleteRequest{
		SessionID: sid,
		Critique:  "name the failing component",
		Revision:  "the ingress controller failed",
		Nonce:     pendingRevise.Nonce,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, revise.Iteration)

	slot := h.lastSlot(t, sid)
	assert.Equal(t, "test-model", slot.Variant, "the draft variant is not rewritten by later phases")
	assert.Equal(t, []string{"name the failing component"}, slot.Critiques)
	assert.Equal(t, []string{"the ingress controller failed"}, slot.Revisions)

	history, err := h.svc.GetHistory(ctx, &dto.SessionQueryRequest{SessionID: sid})
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "the ingress controller failed", history.Messages[1].Content)
}

func TestRefinementService_StaleClientCritiqueBurnsNonce(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"first draft", "second draft"}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "describe the fix"})
	require.NoError(t, err)
	sid := draft.SessionID

	pending, err := h.svc.Critique(ctx, &dto.CritiqueRequest{
		SessionID: sid,
		Sampling:  &dto.SamplingConfigDTO{ExecutionMode: "client"},
	})
	require.NoError(t, err)

	// The slot moves on while the client is still generating.
	_, err = h.svc.Draft(ctx, &dto.DraftRequest{SessionID: sid})
	require.NoError(t, err)

	_, err = h.svc.CritiqueComplete(ctx, &dto.CritiqueCompleteRequest{
		SessionID: sid,
		Draft:     "first draft",
		Critique:  "too vague",
		Nonce:     pending.Nonce,
	})
	require.Error(t, err)
	assert.Equal(t, companion.CodeInvalidRequest, companion.CodeOf(err))
	assert.Contains(t, err.Error(), "does not match")

	slot := h.lastSlot(t, sid)
	assert.Empty(t, slot.Critiques, "a stale completion must not commit")

	// The nonce was consumed before the commit was attempted, so a retry
	// cannot replay it.
	_, err = h.svc.CritiqueComplete(ctx, &dto.CritiqueCompleteRequest{
		SessionID: sid,
		Draft:     "first draft",
		Critique:  "too vague",
		Nonce:     pending.Nonce,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, companion.ErrNoPendingOperation))
}

func TestRefinementService_RefineConverges(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"draft about caching"}
	h.bot.critiques = []string{"add an eviction policy", "tighten the wording"}
	h.bot.revisions = []string{"draft plus eviction", "draft plus eviction tightened"}
	ctx := context.Background()

	var tokens []string
	resp, err := h.svc.Refine(ctx, &dto.RefineRequest{Query: "how do we cache?"}, func(token string) {
		tokens = append(tokens, token)
	})
	require.NoError(t, err)

	assert.Equal(t, "draft plus eviction tightened", resp.FinalAnswer)
	assert.Equal(t, 2, resp.Loops)
	assert.Equal(t, companion.ReasonConverged, resp.Reason)
	require.NotNil(t, resp.Similarity)
	assert.InDelta(t, 1.0, *resp.Similarity, 1e-9)
	assert.Empty(t, resp.Warning)

	// Tokens arrive in generation order across all phases.
	streamed := strings.Join(tokens, "")
	assert.Equal(t,
		"draft about caching"+"add an eviction policy"+"draft plus eviction"+
			"tighten the wording"+"draft plus eviction tightened",
		streamed)

	slot := h.lastSlot(t, resp.SessionID)
	assert.Len(t, slot.Critiques, 2)
	assert.Len(t, slot.Revisions, 2)
	require.NotNil(t, slot.SimilarityScore)

	history, err := h.svc.GetHistory(ctx, &dto.SessionQueryRequest{SessionID: resp.SessionID})
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "draft plus eviction tightened", history.Messages[1].Content)
}

func TestRefinementService_RefineStopsOnStopPhrase(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"already excellent"}
	h.bot.critiques = []string{"Only minimal revisions are needed here."}
	ctx := context.Background()

	resp, err := h.svc.Refine(ctx, &dto.RefineRequest{Query: "polish this"}, nil)
	require.NoError(t, err)

	assert.Equal(t, companion.ReasonNoImprovements, resp.Reason)
	assert.Equal(t, 1, resp.Loops)
	assert.Equal(t, "already excellent", resp.FinalAnswer, "the pre-critique text stands")
	assert.Nil(t, resp.Similarity)

	slot := h.lastSlot(t, resp.SessionID)
	assert.Len(t, slot.Critiques, 1, "the stopping critique is still recorded")
	assert.Empty(t, slot.Revisions)

	_, _, revisions := h.bot.calls()
	assert.Zero(t, revisions)
}

func TestRefinementService_RefineHonorsMaxLoops(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"d"}
	h.bot.critiques = []string{"c1", "c2", "c3"}
	h.bot.revisions = []string{"r1", "r2", "r3"}
	h.emb.vectors["r2"] = []float32{0, 1}
	h.emb.vectors["r3"] = []float32{0, 1}
	ctx := context.Background()

	resp, err := h.svc.Refine(ctx, &dto.RefineRequest{Query: "keep going"}, nil)
	require.NoError(t, err)

	assert.Equal(t, companion.ReasonMaxLoops, resp.Reason)
	assert.Equal(t, 3, resp.Loops)
	assert.Equal(t, "r3", resp.FinalAnswer)
	require.NotNil(t, resp.Similarity)
	assert.InDelta(t, 0.0, *resp.Similarity, 1e-9)

	slot := h.lastSlot(t, resp.SessionID)
	assert.Equal(t, []string{"c1", "c2", "c3"}, slot.Critiques)
	assert.Equal(t, []string{"r1", "r2", "r3"}, slot.Revisions)
}

func TestRefinementService_RefineForcesServerMode(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"server made this"}
	h.bot.critiques = []string{"c1"}
	h.bot.revisions = []string{"r1"}
	ctx := context.Background()

	resp, err := h.svc.Refine(ctx, &dto.RefineRequest{
		Query:    "run it",
		Sampling: &dto.SamplingConfigDTO{ExecutionMode: "client", MaxLoops: 1},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, companion.ReasonMaxLoops, resp.Reason)
	assert.Equal(t, 1, resp.Loops)
	assert.Equal(t, "r1", resp.FinalAnswer)

	drafts, _, _ := h.bot.calls()
	assert.Equal(t, 1, drafts, "the loop always generates server-side")

	slot := h.lastSlot(t, resp.SessionID)
	assert.Equal(t, "test-model", slot.Variant)
}

func TestRefinementService_SamplingContinuity(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"a draft"}
	h.bot.critiques = []string{"c1", "c2"}
	h.bot.revisions = []string{"r1"}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{
		Query:    "tune it",
		Sampling: &dto.SamplingConfigDTO{Temperature: 0.9},
	})
	require.NoError(t, err)
	sid := draft.SessionID
	assert.InDelta(t, 0.9, draft.Sampling.Temperature, 1e-9)
	assert.InDelta(t, 0.9, h.bot.options().Temperature, 1e-9)
	assert.Equal(t, "test-model", h.bot.options().Model)

	// No override: the slot's last-used configuration carries forward.
	critique, err := h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, critique.Sampling.Temperature, 1e-9)
	assert.InDelta(t, 0.9, h.bot.options().Temperature, 1e-9)

	// A partial override merges instead of replacing.
	revise, err := h.svc.Revise(ctx, &dto.ReviseRequest{
		SessionID: sid,
		Sampling:  &dto.SamplingConfigDTO{MaxTokens: 512},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, revise.Sampling.Temperature, 1e-9)
	assert.Equal(t, 512, revise.Sampling.MaxTokens)
	assert.Equal(t, 512, h.bot.options().MaxTokens)

	slot := h.lastSlot(t, sid)
	assert.InDelta(t, 0.9, slot.Sampling.Temperature, 1e-9)
	assert.Equal(t, 512, slot.Sampling.MaxTokens)
}

func TestRefinementService_KindResolution(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"a draft"}
	ctx := context.Background()

	synthesis, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "position the launch", CompanionKind: "synthesis"})
	require.NoError(t, err)
	assert.Equal(t, "synthesis", synthesis.CompanionKind)
	assert.Equal(t, 2, synthesis.Sampling.MaxLoops, "synthesis trades loops for latency")

	unknown, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "anything", CompanionKind: "no-such-kind"})
	require.NoError(t, err)
	assert.Equal(t, "generic", unknown.CompanionKind)
}

func TestRefinementService_SnapshotPublishing(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"a draft"}
	h.bot.critiques = []string{"a critique"}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "persist me"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.sink.count())
	assert.Contains(t, h.sink.last(), draft.SessionID)
	assert.Contains(t, h.sink.last(), "persist me")

	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: draft.SessionID})
	require.NoError(t, err)
	assert.Equal(t, 2, h.sink.count())
	assert.Contains(t, h.sink.last(), "a critique")
}

func TestRefinementService_InspectionViews(t *testing.T) {
	h := newServiceHarness(t)
	h.bot.drafts = []string{"generic draft", "triage draft"}
	h.bot.critiques = []string{"be specific"}
	ctx := context.Background()

	draft, err := h.svc.Draft(ctx, &dto.DraftRequest{Query: "first question"})
	require.NoError(t, err)
	sid := draft.SessionID
	_, err = h.svc.Critique(ctx, &dto.CritiqueRequest{SessionID: sid})
	require.NoError(t, err)
	_, err = h.svc.Draft(ctx, &dto.DraftRequest{SessionID: sid, Query: "triage this", CompanionKind: "triage"})
	require.NoError(t, err)

	meta, err := h.svc.GetSessionMetadata(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, sid, meta.SessionID)
	assert.Equal(t, []string{"generic", "triage"}, meta.CompanionKinds)
	assert.Equal(t, 2, meta.TotalRequests)
	assert.Equal(t, 1, meta.TotalIterations)
	assert.False(t, meta.CreatedAt.IsZero())
	assert.False(t, meta.LastAccessed.Before(meta.CreatedAt))

	transcript, err := h.svc.GetTranscript(ctx, &dto.SessionQueryRequest{SessionID: sid})
	require.NoError(t, err)
	assert.Contains(t, transcript.Transcript, "## Query")
	assert.Contains(t, transcript.Transcript, "generic draft")
	assert.Contains(t, transcript.Transcript, "be specific")

	kinds, err := h.svc.ListKinds(ctx)
	require.NoError(t, err)
	require.Len(t, kinds.Kinds, 4)
	names := make([]string, 0, len(kinds.Kinds))
	for _, kind := range kinds.Kinds {
		names = append(names, kind.Kind)
	}
	assert.Equal(t, []string{"generic", "strategy", "synthesis", "triage"}, names)
	assert.Equal(t, 3, kinds.Kinds[0].MaxLoops)
	assert.InDelta(t, 0.97, kinds.Kinds[1].SimilarityThreshold, 1e-9)
	assert.Equal(t, 2, kinds.Kinds[2].MaxLoops)
}
