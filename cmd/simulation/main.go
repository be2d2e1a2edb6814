package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"sync"

	"ai-refinery-be/internal/constant"
	"ai-refinery-be/internal/dto"
	"ai-refinery-be/internal/pkg/logger"
	"ai-refinery-be/internal/repository/memory"
	"ai-refinery-be/internal/service"
	"ai-refinery-be/internal/session"
	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/embedding"
	"ai-refinery-be/pkg/llm"
	"ai-refinery-be/pkg/prompt"
	"ai-refinery-be/pkg/similarity"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
)

const (
	simTopic   = "SIMULATION_SNAPSHOTS"
	simQuery   = "Summarize the trade-offs of moving our billing service from cron jobs to an event-driven pipeline."
	clientDone = "Client draft: billing moves to an event pipeline in three phases, with the cron path kept as fallback until phase two."

	draftText   = "Moving billing off cron gives lower latency and per-event retries, at the cost of harder ordering guarantees and a new broker to operate."
	revisionOne = "Event-driven billing cuts settlement latency from hours to seconds and gives per-event retries. The trade-offs: ordering needs idempotent consumers, and the broker becomes a tier-one dependency."
	revisionTwo = "Event-driven billing cuts settlement latency from hours to seconds and isolates retries per event. Ordering requires idempotent consumers, the broker becomes a tier-one dependency, and backfills need a replay tool."
)

// scriptedBot plays the LLM: phase is detected from the system prompt,
// critiques signal a stop on the third round, revisions repeat from the
// second round so the similarity check can observe convergence.
type scriptedBot struct {
	mu        sync.Mutex
	critiques int
	revisions int
}

func (b *scriptedBot) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.critiques = 0
	b.revisions = 0
}

func (b *scriptedBot) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	system := ""
	if len(history) > 0 {
		system = history[0].Content
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case strings.Contains(system, "critical reviewer"):
		b.critiques++
		if b.critiques >= 3 {
			return "The draft is sound and requires no further improvements.", nil
		}
		return fmt.Sprintf("Point %d: quantify the latency claim and name the failure mode the retry path introduces.", b.critiques), nil
	case strings.Contains(system, "reviser"):
		b.revisions++
		if b.revisions >= 2 {
			return revisionTwo, nil
		}
		return revisionOne, nil
	default:
		return draftText, nil
	}
}

func (b *scriptedBot) ChatStream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	out, err := b.Chat(ctx, history, options...)
	if err != nil {
		return "", err
	}
	for _, token := range strings.SplitAfter(out, " ") {
		onToken(token)
	}
	return out, nil
}

func (b *scriptedBot) Generate(ctx context.Context, promptText string, options ...llm.Option) (string, error) {
	return b.Chat(ctx, []llm.Message{{Role: "user", Content: promptText}}, options...)
}

// hashEmbedder maps identical texts to identical vectors, so similarity
// hits 1.0 exactly when a revision stops changing.
type hashEmbedder struct{}

func (hashEmbedder) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	sum := sha256.Sum256([]byte(text))
	values := make([]float32, 16)
	for i := range values {
		values[i] = float32(sum[i])/255 + 0.01
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

func main() {
	color.Cyan("🚀 Refinery Simulation: scripted providers, full in-process stack\n")

	sysLogger := logger.NewIsolatedLogger("logs/simulation.log")
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	snapshotRepo := memory.NewSnapshotRepository()
	pendingRepo := memory.NewPendingOperationRepository()
	store := session.NewStore(session.Config{}, snapshotRepo, sysLogger)

	templates := prompt.NewStore(prompt.TemplateSet{
		InitialSystem:  constant.RefineInitialSystemPromptV1,
		CritiqueSystem: constant.RefineCritiqueSystemPromptV1,
		RevisionSystem: constant.RefineRevisionSystemPromptV1,
		CritiqueUser:   constant.RefineCritiqueUserPromptV1,
		RevisionUser:   constant.RefineRevisionUserPromptV1,
	})
	registry := companion.DefaultRegistry()

	bot := &scriptedBot{}
	generator := service.NewPhaseGenerator(templates, registry, bot, false)
	oracle := similarity.NewOracle(hashEmbedder{})

	publisher := service.NewPublisherService(simTopic, pubSub)
	persister := service.NewPersisterService(pubSub, simTopic, snapshotRepo)

	svc := service.NewRefinementService(
		store, pendingRepo, registry, generator, oracle,
		publisher, nil, "scripted-model", 0.7,
	)

	ctx := context.Background()
	if err := persister.Consume(ctx); err != nil {
		color.Red("Failed to start persister: %v", err)
		os.Exit(1)
	}

	// 1. Interactive refinement, server mode
	color.Yellow("\n[1] Interactive refinement (server mode)")
	draft, err := svc.Draft(ctx, &dto.DraftRequest{Query: simQuery})
	die(err)
	color.Green("Draft committed (session %s, variant %s)", draft.SessionID, draft.Variant)
	fmt.Println(indent(draft.Content))

	for round := 1; round <= 3; round++ {
		crit, err := svc.Critique(ctx, &dto.CritiqueRequest{SessionID: draft.SessionID})
		die(err)
		fmt.Printf("\ncritique #%d (stop_signal=%v):\n%s\n", crit.Iteration, crit.StopSignal, indent(crit.Content))

		rev, err := svc.Revise(ctx, &dto.ReviseRequest{SessionID: draft.SessionID})
		die(err)
		fmt.Printf("revision #%d similarity=%s\n", rev.Iteration, similarityLabel(rev.Similarity, rev.Converged))
	}

	// 2. Dual execution, client mode
	color.Yellow("\n[2] Dual execution (client mode)")
	pending, err := svc.Draft(ctx, &dto.DraftRequest{
		Query:    simQuery,
		Sampling: &dto.SamplingConfigDTO{ExecutionMode: "client"},
	})
	die(err)
	color.Green("Status: %s", pending.Status)
	fmt.Printf("system prompt: %.60s...\n", pending.SystemPrompt)
	fmt.Printf("nonce: %s\n", pending.Nonce)

	completed, err := svc.DraftComplete(ctx, &dto.DraftCompleteRequest{
		SessionID: pending.SessionID,
		Query:     simQuery,
		Draft:     clientDone,
		Nonce:     pending.Nonce,
	})
	die(err)
	color.Green("Draft committed with variant %q", completed.Variant)

	_, err = svc.DraftComplete(ctx, &dto.DraftCompleteRequest{
		SessionID: pending.SessionID,
		Query:     simQuery,
		Draft:     clientDone,
		Nonce:     pending.Nonce,
	})
	color.Green("Replay rejected as expected: %v", err)

	// 3. Non-interactive refine loop with token streaming
	color.Yellow("\n[3] Non-interactive refine loop (streaming)")
	bot.Reset()
	res, err := svc.Refine(ctx, &dto.RefineRequest{Query: simQuery}, func(token string) {
		fmt.Print(token)
	})
	die(err)
	fmt.Println()
	color.Green("Refine done: loops=%d reason=%s similarity=%s", res.Loops, res.Reason, similarityLabel(res.Similarity, false))
	fmt.Println(indent(res.FinalAnswer))

	// 4. Inspection surface
	color.Yellow("\n[4] Inspection")
	meta, err := svc.GetSessionMetadata(ctx, draft.SessionID)
	die(err)
	fmt.Printf("session %s: kinds=%v requests=%d iterations=%d\n",
		meta.SessionID, meta.CompanionKinds, meta.TotalRequests, meta.TotalIterations)

	transcript, err := svc.GetTranscript(ctx, &dto.SessionQueryRequest{SessionID: draft.SessionID})
	die(err)
	fmt.Println(indent(transcript.Transcript))

	kinds, err := svc.ListKinds(ctx)
	die(err)
	for _, kind := range kinds.Kinds {
		fmt.Printf("kind %-10s max_loops=%d threshold=%.2f\n", kind.Kind, kind.MaxLoops, kind.SimilarityThreshold)
	}

	color.Cyan("\n✅ Simulation finished")
}

func die(err error) {
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
}

func indent(text string) string {
	return "  " + strings.ReplaceAll(text, "\n", "\n  ")
}

func similarityLabel(score *float64, converged bool) string {
	if score == nil {
		return "n/a"
	}
	if converged {
		return fmt.Sprintf("%.4f (converged)", *score)
	}
	return fmt.Sprintf("%.4f", *score)
}
