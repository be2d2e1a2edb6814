package service

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"ai-refinery-be/pkg/companion"
	"ai-refinery-be/pkg/llm"
	"ai-refinery-be/pkg/prompt"
)

// PhaseGenerator turns refinement phases into LLM calls. It resolves the
// kind's template set, assembles the prompts, and maps companion history to
// the provider's chat format.
type PhaseGenerator struct {
	templates *prompt.Store
	registry  *companion.Registry
	provider  llm.LLMProvider
	llmLogger *log.Logger
}

func NewPhaseGenerator(
	templates *prompt.Store,
	registry *companion.Registry,
	provider llm.LLMProvider,
	traceEnabled bool,
) *PhaseGenerator {
	return &PhaseGenerator{
		templates: templates,
		registry:  registry,
		provider:  provider,
		llmLogger: initLLMLogger(traceEnabled),
	}
}

func initLLMLogger(enabled bool) *log.Logger {
	if !enabled {
		return log.New(io.Discard, "", 0)
	}
	logPath := filepath.Join(".", "logs", "llm_refinery.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[LLM-REFINERY] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// ForKind binds the generator to one companion kind's templates.
func (g *PhaseGenerator) ForKind(kind string) *KindGenerator {
	cfg := g.registry.Lookup(kind)
	return &KindGenerator{
		parent: g,
		kind:   cfg.Kind,
		set:    g.templates.ForKind(cfg.Kind, cfg.DomainContext),
	}
}

// KindGenerator produces phase texts for one companion kind. A token sink,
// when set, receives streaming deltas from every generation call.
type KindGenerator struct {
	parent  *PhaseGenerator
	kind    string
	set     prompt.TemplateSet
	onToken func(string)
}

var _ companion.Generator = (*KindGenerator)(nil)

// WithTokenSink returns a copy that relays token deltas to sink.
func (k *KindGenerator) WithTokenSink(sink func(string)) *KindGenerator {
	bound := *k
	bound.onToken = sink
	return &bound
}

// DraftPrompts exposes the assembled draft prompts for client-side execution.
func (k *KindGenerator) DraftPrompts(query string) (system, user string) {
	return prompt.DraftPrompts(k.set, query)
}

// CritiquePrompts assembles the critique prompts against the slot's current
// text, surfacing the earlier-draft window.
func (k *KindGenerator) CritiquePrompts(slot *companion.Slot) (system, user string) {
	window := prompt.DraftWindow(slot.Draft, slot.Revisions, prompt.DraftWindowSize)
	return prompt.CritiquePrompts(k.set, slot.Query, slot.CritiqueTarget(), window)
}

// RevisionPrompts assembles the revision prompts from the slot's revise
// target and its latest critique.
func (k *KindGenerator) RevisionPrompts(slot *companion.Slot) (system, user string) {
	return prompt.RevisionPrompts(k.set, slot.Query, slot.ReviseTarget(), slot.LastCritique())
}

// Draft generates the initial answer, carrying the bounded conversation
// history between the system prompt and the query.
func (k *KindGenerator) Draft(ctx context.Context, history []companion.Message, query string, sampling companion.SamplingConfig) (string, error) {
	system, user := k.DraftPrompts(query)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: chatRole(msg.Role), Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: user})

	return k.chat(ctx, "DRAFT", messages, sampling)
}

// Critique generates a critique of the slot's current text.
func (k *KindGenerator) Critique(ctx context.Context, slot *companion.Slot, sampling companion.SamplingConfig) (string, error) {
	system, user := k.CritiquePrompts(slot)
	return k.chat(ctx, "CRITIQUE", []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, sampling)
}

// Revise generates a revision answering the slot's latest critique.
func (k *KindGenerator) Revise(ctx context.Context, slot *companion.Slot, sampling companion.SamplingConfig) (string, error) {
	system, user := k.RevisionPrompts(slot)
	return k.chat(ctx, "REVISE", []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, sampling)
}

func (k *KindGenerator) chat(ctx context.Context, phase string, messages []llm.Message, sampling companion.SamplingConfig) (string, error) {
	opts := samplingOptions(sampling)

	k.parent.llmLogger.Printf("[%s] kind=%s model=%s messages=%d", phase, k.kind, sampling.Model, len(messages))

	var (
		response string
		err      error
	)
	if k.onToken != nil {
		response, err = k.parent.provider.ChatStream(ctx, messages, k.onToken, opts...)
	} else {
		response, err = k.parent.provider.Chat(ctx, messages, opts...)
	}
	if err != nil {
		k.parent.llmLogger.Printf("[%s] kind=%s failed: %v", phase, k.kind, err)
		return "", err
	}

	k.parent.llmLogger.Printf("[%s] kind=%s response_chars=%d", phase, k.kind, len(response))
	return response, nil
}

func samplingOptions(sampling companion.SamplingConfig) []llm.Option {
	var opts []llm.Option
	if sampling.Model != "" {
		opts = append(opts, llm.WithModel(sampling.Model))
	}
	if sampling.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(sampling.Temperature))
	}
	if sampling.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(sampling.MaxTokens))
	}
	return opts
}

func chatRole(role string) string {
	if role == companion.RoleHuman {
		return "user"
	}
	return "assistant"
}
