package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"ai-refinery-be/internal/dto"
	"ai-refinery-be/internal/repository/contract"
	"ai-refinery-be/internal/session"
	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/events"
	pktNats "ai-refinery-be/pkg/nats"
	"ai-refinery-be/pkg/similarity"
	"ai-refinery-be/pkg/stream"
)

// IRefinementService drives the draft/critique/revise protocol: the six
// phase operations (each in server or client execution mode), the
// non-interactive convergence loop, and read-only inspection.
type IRefinementService interface {
	Draft(ctx context.Context, req *dto.DraftRequest) (*dto.PhaseResponse, error)
	DraftComplete(ctx context.Context, req *dto.DraftCompleteRequest) (*dto.PhaseResponse, error)
	Critique(ctx context.Context, req *dto.CritiqueRequest) (*dto.PhaseResponse, error)
	CritiqueComplete(ctx context.Context, req *dto.CritiqueCompleteRequest) (*dto.PhaseResponse, error)
	Revise(ctx context.Context, req *dto.ReviseRequest) (*dto.PhaseResponse, error)
	ReviseComplete(ctx context.Context, req *dto.ReviseCompleteRequest) (*dto.PhaseResponse, error)

	// Refine runs the full convergence loop in server mode. Tokens are
	// relayed through the streaming bridge to onToken; a nil onToken
	// discards the live preview but still collects stream stats.
	Refine(ctx context.Context, req *dto.RefineRequest, onToken func(string)) (*dto.RefineResponse, error)

	GetHistory(ctx context.Context, req *dto.SessionQueryRequest) (*dto.GetHistoryResponse, error)
	GetRunLog(ctx context.Context, req *dto.SessionQueryRequest) (*dto.GetRunLogResponse, error)
	GetTranscript(ctx context.Context, req *dto.SessionQueryRequest) (*dto.TranscriptResponse, error)
	GetSessionMetadata(ctx context.Context, sessionID string) (*dto.SessionMetadataResponse, error)
	ListKinds(ctx context.Context) (*dto.ListKindsResponse, error)
}

type refinementService struct {
	sessions         *session.Store
	pendingRepo      contract.PendingOperationRepository
	registry         *companion.Registry
	generator        *PhaseGenerator
	oracle           *similarity.Oracle
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher

	defaultModel       string
	defaultTemperature float64
}

func NewRefinementService(
	sessions *session.Store,
	pendingRepo contract.PendingOperationRepository,
	registry *companion.Registry,
	generator *PhaseGenerator,
	oracle *similarity.Oracle,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	defaultModel string,
	defaultTemperature float64,
) IRefinementService {
	return &refinementService{
		sessions:           sessions,
		pendingRepo:        pendingRepo,
		registry:           registry,
		generator:          generator,
		oracle:             oracle,
		publisherService:   publisherService,
		eventPublisher:     eventPublisher,
		defaultModel:       defaultModel,
		defaultTemperature: defaultTemperature,
	}
}

// Draft produces or replaces the current slot's draft. Server mode generates
// and commits; client mode returns the prompts and a one-time nonce instead.
func (rs *refinementService) Draft(ctx context.Context, req *dto.DraftRequest) (*dto.PhaseResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)
	acc := sess.Accessor(cfg.Kind)

	var (
		sampling companion.SamplingConfig
		decision companion.DraftDecision
		history  []companion.Message
	)
	if err := acc.With(func(c *companion.Companion) error {
		sampling = rs.effectiveSampling(c, req.Sampling)
		var verr error
		decision, verr = companion.ValidateDraft(c.CurrentSlot(), req.Query, variantFor(sampling))
		if verr != nil {
			return verr
		}
		history = c.HistoryCopy()
		return nil
	}); err != nil {
		return nil, err
	}

	if sampling.ExecutionMode == companion.ModeClient {
		system, user := rs.generator.ForKind(cfg.Kind).DraftPrompts(decision.Query)
		return rs.clientExecution(sess, cfg, companion.PhaseDraft, decision.Query, system, user, sampling)
	}

	draft, err := rs.generator.ForKind(cfg.Kind).Draft(ctx, history, decision.Query, sampling)
	if err != nil {
		return nil, companion.WrapBackend("draft", err)
	}

	resp, err := rs.commitDraft(sess, cfg, decision.Query, draft, sampling)
	if err != nil {
		return nil, err
	}
	rs.publishSnapshot(ctx, sess)
	return resp, nil
}

// DraftComplete commits a client-generated draft against its pending nonce.
func (rs *refinementService) DraftComplete(ctx context.Context, req *dto.DraftCompleteRequest) (*dto.PhaseResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)

	if err := rs.pendingRepo.Consume(sess.ID, companion.PhaseDraft, companion.HashContent(req.Query), req.Nonce); err != nil {
		return nil, err
	}

	sampling := rs.clientSampling(sess, cfg, req.Sampling)
	resp, err := rs.commitDraft(sess, cfg, req.Query, req.Draft, sampling)
	if err != nil {
		return nil, err
	}
	rs.publishSnapshot(ctx, sess)
	return resp, nil
}

// Critique reviews the slot's current text. The target and query are
// resolved from the slot; callers never re-submit them in server mode.
func (rs *refinementService) Critique(ctx context.Context, req *dto.CritiqueRequest) (*dto.PhaseResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)
	acc := sess.Accessor(cfg.Kind)

	var (
		sampling companion.SamplingConfig
		working  *companion.Slot
	)
	if err := acc.With(func(c *companion.Companion) error {
		sampling = rs.effectiveSampling(c, req.Sampling)
		if verr := companion.ValidateCritique(c.CurrentSlot()); verr != nil {
			return verr
		}
		working = c.CurrentSlot().Clone()
		return nil
	}); err != nil {
		return nil, err
	}

	if sampling.ExecutionMode == companion.ModeClient {
		system, user := rs.generator.ForKind(cfg.Kind).CritiquePrompts(working)
		return rs.clientExecution(sess, cfg, companion.PhaseCritique, working.CritiqueTarget(), system, user, sampling)
	}

	critique, err := rs.generator.ForKind(cfg.Kind).Critique(ctx, working, sampling)
	if err != nil {
		return nil, companion.WrapBackend("critique", err)
	}

	resp, err := rs.commitCritique(sess, cfg, working.CritiqueTarget(), critique, sampling)
	if err != nil {
		return nil, err
	}
	rs.publishSnapshot(ctx, sess)
	return resp, nil
}

// CritiqueComplete commits a client-generated critique of the submitted
// draft text against its pending nonce.
func (rs *refinementService) CritiqueComplete(ctx context.Context, req *dto.CritiqueCompleteRequest) (*dto.PhaseResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)

	if err := rs.pendingRepo.Consume(sess.ID, companion.PhaseCritique, companion.HashContent(req.Draft), req.Nonce); err != nil {
		return nil, err
	}

	sampling := rs.clientSampling(sess, cfg, req.Sampling)
	resp, err := rs.commitCritique(sess, cfg, req.Draft, req.Critique, sampling)
	if err != nil {
		return nil, err
	}
	rs.publishSnapshot(ctx, sess)
	return resp, nil
}

// Revise rewrites the slot's current text from its latest critique, then
// reports revision-to-revision similarity once two revisions exist.
func (rs *refinementService) Revise(ctx context.Context, req *dto.ReviseRequest) (*dto.PhaseResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)
	acc := sess.Accessor(cfg.Kind)

	var (
		sampling companion.SamplingConfig
		working  *companion.Slot
	)
	if err := acc.With(func(c *companion.Companion) error {
		sampling = rs.effectiveSampling(c, req.Sampling)
		if verr := companion.ValidateRevise(c.CurrentSlot()); verr != nil {
			return verr
		}
		working = c.CurrentSlot().Clone()
		return nil
	}); err != nil {
		return nil, err
	}

	if sampling.ExecutionMode == companion.ModeClient {
		system, user := rs.generator.ForKind(cfg.Kind).RevisionPrompts(working)
		return rs.clientExecution(sess, cfg, companion.PhaseRevise, working.LastCritique(), system, user, sampling)
	}

	revision, err := rs.generator.ForKind(cfg.Kind).Revise(ctx, working, sampling)
	if err != nil {
		return nil, companion.WrapBackend("revise", err)
	}

	resp, err := rs.commitRevision(sess, cfg, working.LastCritique(), revision, sampling)
	if err != nil {
		return nil, err
	}
	rs.publishSnapshot(ctx, sess)
	rs.reportRevisionSimilarity(ctx, sess, cfg, resp, sampling.SimilarityThreshold)
	return resp, nil
}

// ReviseComplete commits a client-generated revision answering the submitted
// critique against its pending nonce.
func (rs *refinementService) ReviseComplete(ctx context.Context, req *dto.ReviseCompleteRequest) (*dto.PhaseResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)

	if err := rs.pendingRepo.Consume(sess.ID, companion.PhaseRevise, companion.HashContent(req.Critique), req.Nonce); err != nil {
		return nil, err
	}

	sampling := rs.clientSampling(sess, cfg, req.Sampling)
	resp, err := rs.commitRevision(sess, cfg, req.Critique, req.Revision, sampling)
	if err != nil {
		return nil, err
	}
	rs.publishSnapshot(ctx, sess)
	rs.reportRevisionSimilarity(ctx, sess, cfg, resp, sampling.SimilarityThreshold)
	return resp, nil
}

// Refine runs draft/critique/revise to convergence in server mode.
func (rs *refinementService) Refine(ctx context.Context, req *dto.RefineRequest, onToken func(string)) (*dto.RefineResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)
	acc := sess.Accessor(cfg.Kind)

	var sampling companion.SamplingConfig
	if err := acc.With(func(c *companion.Companion) error {
		sampling = rs.effectiveSampling(c, req.Sampling)
		return nil
	}); err != nil {
		return nil, err
	}
	sampling.ExecutionMode = companion.ModeServer

	bridge := stream.NewBridge()
	gen := rs.generator.ForKind(cfg.Kind).WithTokenSink(bridge.Put)
	engine := companion.NewEngine(gen, rs.oracle)

	type outcome struct {
		result *companion.RunResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, runErr := engine.Run(ctx, acc, req.Query, sampling, func() {
			rs.publishSnapshot(ctx, sess)
		})
		if runErr != nil {
			bridge.RecordError()
		}
		bridge.Finish()
		done <- outcome{result: result, err: runErr}
	}()

	sink := onToken
	if sink == nil {
		sink = func(string) {}
	}
	// A cancelled drain abandons the stream; the engine observes the same
	// ctx at its next step boundary, so the run below always terminates.
	_ = bridge.Drain(ctx, sink)
	run := <-done
	if run.err != nil {
		return nil, run.err
	}

	var score float64
	if run.result.Similarity != nil {
		score = *run.result.Similarity
	}
	rs.publishEvent(ctx, events.NewRefineConverged(sess.ID, cfg.Kind, run.result.Reason, run.result.Loops, score))

	resp := &dto.RefineResponse{
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		FinalAnswer:   run.result.FinalAnswer,
		Loops:         run.result.Loops,
		Reason:        run.result.Reason,
		Similarity:    run.result.Similarity,
	}
	if bridge.Degraded() {
		resp.Warning = bridge.Summary()
	}
	return resp, nil
}

// GetHistory returns the companion's bounded conversation history.
func (rs *refinementService) GetHistory(ctx context.Context, req *dto.SessionQueryRequest) (*dto.GetHistoryResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)

	messages := []dto.HistoryMessageDTO{}
	if err := sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		for _, msg := range c.History {
			messages = append(messages, dto.HistoryMessageDTO{Role: msg.Role, Content: msg.Content})
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &dto.GetHistoryResponse{
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		Messages:      messages,
	}, nil
}

// GetRunLog returns every slot of the companion, newest last.
func (rs *refinementService) GetRunLog(ctx context.Context, req *dto.SessionQueryRequest) (*dto.GetRunLogResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)

	slots := []dto.SlotDTO{}
	if err := sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		for _, slot := range c.Slots {
			slots = append(slots, slotToDTO(slot))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &dto.GetRunLogResponse{
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		Slots:         slots,
	}, nil
}

// GetTranscript renders the current slot as a Markdown transcript.
func (rs *refinementService) GetTranscript(ctx context.Context, req *dto.SessionQueryRequest) (*dto.TranscriptResponse, error) {
	sess, err := rs.resolveSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	cfg := rs.ensureCompanion(sess, req.CompanionKind)

	var current *companion.Slot
	if err := sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		current = c.CurrentSlot().Clone()
		return nil
	}); err != nil {
		return nil, err
	}

	return &dto.TranscriptResponse{
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		Transcript:    companion.Transcript(current),
	}, nil
}

// GetSessionMetadata summarizes a session across all its companions.
func (rs *refinementService) GetSessionMetadata(ctx context.Context, sessionID string) (*dto.SessionMetadataResponse, error) {
	sess, err := rs.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	meta := sess.Metadata()
	sort.Strings(meta.CompanionKinds)

	return &dto.SessionMetadataResponse{
		SessionID:       meta.SessionID,
		CreatedAt:       meta.CreatedAt,
		LastAccessed:    meta.LastAccessed,
		CompanionKinds:  meta.CompanionKinds,
		TotalRequests:   meta.TotalRequests,
		TotalIterations: meta.TotalIterations,
	}, nil
}

// ListKinds returns the registered companion kinds and their tuning.
func (rs *refinementService) ListKinds(ctx context.Context) (*dto.ListKindsResponse, error) {
	names := rs.registry.Kinds()
	sort.Strings(names)

	kinds := make([]dto.CompanionKindDTO, 0, len(names))
	for _, name := range names {
		cfg := rs.registry.Lookup(name)
		kinds = append(kinds, dto.CompanionKindDTO{
			Kind:                cfg.Kind,
			MaxLoops:            cfg.MaxLoops,
			SimilarityThreshold: cfg.SimilarityThreshold,
		})
	}

	return &dto.ListKindsResponse{Kinds: kinds}, nil
}

// --- Commit helpers (shared by server mode and completion calls) ---

func (rs *refinementService) commitDraft(sess *session.Session, cfg companion.Config, query, draft string, sampling companion.SamplingConfig) (*dto.PhaseResponse, error) {
	variant := variantFor(sampling)

	var overwrote bool
	if err := sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		decision, err := companion.ValidateDraft(c.CurrentSlot(), query, variant)
		if err != nil {
			return err
		}
		if decision.Fresh {
			c.StartSlot(decision.Query, draft, variant, sampling)
		} else {
			overwrote = decision.Overwrite
			c.CurrentSlot().CommitDraft(draft, variant, sampling)
			c.ReplaceLastAnswer(draft)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &dto.PhaseResponse{
		Status:        dto.StatusOK,
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		Phase:         string(companion.PhaseDraft),
		Content:       draft,
		Variant:       variant,
		Overwrote:     overwrote,
		Sampling:      samplingToDTO(sampling),
	}, nil
}

func (rs *refinementService) commitCritique(sess *session.Session, cfg companion.Config, target, critique string, sampling companion.SamplingConfig) (*dto.PhaseResponse, error) {
	var iteration int
	if err := sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		slot := c.CurrentSlot()
		if err := companion.ValidateCritique(slot); err != nil {
			return err
		}
		if slot.CritiqueTarget() != target {
			return &companion.ProtocolError{
				Code:    companion.CodeInvalidRequest,
				Message: "draft text does not match the slot's current text",
			}
		}
		slot.CommitCritique(critique, sampling)
		iteration = len(slot.Critiques)
		return nil
	}); err != nil {
		return nil, err
	}

	return &dto.PhaseResponse{
		Status:        dto.StatusOK,
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		Phase:         string(companion.PhaseCritique),
		Content:       critique,
		Variant:       variantFor(sampling),
		Iteration:     iteration,
		StopSignal:    companion.ContainsStopPhrase(critique),
		Sampling:      samplingToDTO(sampling),
	}, nil
}

func (rs *refinementService) commitRevision(sess *session.Session, cfg companion.Config, critique, revision string, sampling companion.SamplingConfig) (*dto.PhaseResponse, error) {
	var iteration int
	if err := sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		slot := c.CurrentSlot()
		if err := companion.ValidateRevise(slot); err != nil {
			return err
		}
		if slot.LastCritique() != critique {
			return &companion.ProtocolError{
				Code:    companion.CodeInvalidRequest,
				Message: "critique does not match the slot's latest critique",
			}
		}
		slot.CommitRevision(revision, sampling)
		c.ReplaceLastAnswer(revision)
		iteration = len(slot.Revisions)
		return nil
	}); err != nil {
		return nil, err
	}

	return &dto.PhaseResponse{
		Status:        dto.StatusOK,
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		Phase:         string(companion.PhaseRevise),
		Content:       revision,
		Variant:       variantFor(sampling),
		Iteration:     iteration,
		Sampling:      samplingToDTO(sampling),
	}, nil
}

// clientExecution mints a nonce for the pending step and returns the prompt
// payload. No slot state changes until the matching complete call.
func (rs *refinementService) clientExecution(sess *session.Session, cfg companion.Config, phase companion.Phase, input, system, user string, sampling companion.SamplingConfig) (*dto.PhaseResponse, error) {
	nonce, err := rs.pendingRepo.Put(sess.ID, phase, companion.HashContent(input))
	if err != nil {
		return nil, err
	}

	return &dto.PhaseResponse{
		Status:        dto.StatusClientExecutionRequired,
		SessionID:     sess.ID,
		CompanionKind: cfg.Kind,
		Phase:         string(phase),
		SystemPrompt:  system,
		UserPrompt:    user,
		Nonce:         nonce,
		Sampling:      samplingToDTO(sampling),
	}, nil
}

// reportRevisionSimilarity compares the last two revisions and stores the
// score on the slot. The commit already happened, so a failing embedding
// backend degrades to a warning instead of failing the call.
func (rs *refinementService) reportRevisionSimilarity(ctx context.Context, sess *session.Session, cfg companion.Config, resp *dto.PhaseResponse, threshold float64) {
	var previous, latest string
	if err := sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		slot := c.CurrentSlot()
		if slot == nil || len(slot.Revisions) < 2 {
			return nil
		}
		previous = slot.Revisions[len(slot.Revisions)-2]
		latest = slot.Revisions[len(slot.Revisions)-1]
		return nil
	}); err != nil || latest == "" {
		return
	}

	score, err := rs.oracle.Score(ctx, previous, latest)
	if err != nil {
		resp.Warning = fmt.Sprintf("similarity computation failed: %v", err)
		return
	}

	stored := false
	_ = sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		slot := c.CurrentSlot()
		if slot == nil || slot.LastRevision() != latest {
			return nil
		}
		slot.SimilarityScore = &score
		stored = true
		return nil
	})

	resp.Similarity = &score
	if threshold > 0 && score >= threshold {
		resp.Converged = true
	}
	if stored {
		rs.publishSnapshot(ctx, sess)
	}
}

// --- Session and sampling resolution ---

// resolveSession loads or creates the session, announcing creations on the
// event bus.
func (rs *refinementService) resolveSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, created, err := rs.sessions.LoadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if created {
		rs.publishEvent(ctx, events.NewSessionCreated(sess.ID))
	}
	return sess, nil
}

// ensureCompanion resolves the kind (unknown or blank falls back to generic)
// and guarantees the companion exists on the session.
func (rs *refinementService) ensureCompanion(sess *session.Session, kind string) companion.Config {
	cfg := rs.registry.Lookup(kind)
	sess.EnsureCompanion(cfg.Kind, func() *companion.Companion {
		return companion.New(cfg.Kind, cfg.DefaultSampling(rs.defaultModel, rs.defaultTemperature))
	})
	return cfg
}

// effectiveSampling overlays the request's overrides on the last-used
// configuration: the current slot's when one exists, otherwise the
// companion's kind defaults.
func (rs *refinementService) effectiveSampling(c *companion.Companion, override *dto.SamplingConfigDTO) companion.SamplingConfig {
	base := c.Sampling
	if slot := c.CurrentSlot(); slot != nil {
		base = slot.Sampling
	}
	merged := companion.MergeSampling(base, samplingFromDTO(override))
	if merged.Model == "" {
		merged.Model = rs.defaultModel
	}
	return merged
}

// clientSampling is effectiveSampling with the execution mode pinned to
// client, for completion calls.
func (rs *refinementService) clientSampling(sess *session.Session, cfg companion.Config, override *dto.SamplingConfigDTO) companion.SamplingConfig {
	var sampling companion.SamplingConfig
	_ = sess.WithCompanion(cfg.Kind, func(c *companion.Companion) error {
		sampling = rs.effectiveSampling(c, override)
		return nil
	})
	sampling.ExecutionMode = companion.ModeClient
	return sampling
}

// --- Publishing ---

func (rs *refinementService) publishSnapshot(ctx context.Context, sess *session.Session) {
	snapshot := sess.Snapshot()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal snapshot for session %s: %v", sess.ID, err)
		return
	}
	if err := rs.publisherService.Publish(ctx, payload); err != nil {
		log.Printf("[WARN] Failed to publish snapshot for session %s: %v", sess.ID, err)
	}
}

func (rs *refinementService) publishEvent(ctx context.Context, evt events.BaseEvent) {
	if rs.eventPublisher == nil {
		return
	}
	if err := rs.eventPublisher.Publish(ctx, evt); err != nil {
		log.Printf("[WARN] Failed to publish %s event: %v", evt.Type, err)
	}
}

// --- DTO mapping ---

func variantFor(sampling companion.SamplingConfig) string {
	if sampling.ExecutionMode == companion.ModeClient {
		return companion.ClientVariant
	}
	return sampling.Model
}

func samplingFromDTO(d *dto.SamplingConfigDTO) companion.SamplingConfig {
	if d == nil {
		return companion.SamplingConfig{}
	}
	return companion.SamplingConfig{
		Model:               d.Model,
		Temperature:         d.Temperature,
		MaxTokens:           d.MaxTokens,
		SimilarityThreshold: d.SimilarityThreshold,
		MaxLoops:            d.MaxLoops,
		ExecutionMode:       d.ExecutionMode,
	}
}

func samplingToDTO(sc companion.SamplingConfig) dto.SamplingConfigDTO {
	return dto.SamplingConfigDTO{
		Model:               sc.Model,
		Temperature:         sc.Temperature,
		MaxTokens:           sc.MaxTokens,
		SimilarityThreshold: sc.SimilarityThreshold,
		MaxLoops:            sc.MaxLoops,
		ExecutionMode:       sc.ExecutionMode,
	}
}

func slotToDTO(slot *companion.Slot) dto.SlotDTO {
	out := dto.SlotDTO{
		Query:     slot.Query,
		Draft:     slot.Draft,
		Variant:   slot.Variant,
		Critiques: append([]string(nil), slot.Critiques...),
		Revisions: append([]string(nil), slot.Revisions...),
		Sampling:  samplingToDTO(slot.Sampling),
	}
	if slot.SimilarityScore != nil {
		score := *slot.SimilarityScore
		out.SimilarityScore = &score
	}
	return out
}
