package companion

import (
	"context"
	"strings"
)

// Stop reasons for a convergence run.
const (
	ReasonNoImprovements = "no_improvements"
	ReasonConverged      = "converged"
	ReasonMaxLoops       = "max_loops"
)

// AnchorPolicy names which earlier text a similarity comparison is anchored
// on. The convergence loop compares each revision against the draft it
// replaced; the interactive revise path compares consecutive revisions.
type AnchorPolicy string

const (
	AnchorPreviousDraft    AnchorPolicy = "previous_draft"
	AnchorPreviousRevision AnchorPolicy = "previous_revision"
)

// StopPhrases end the loop when a critique contains one of them.
var StopPhrases = []string{"no further improvements", "minimal revisions"}

// ContainsStopPhrase reports whether the critique declares the text done.
func ContainsStopPhrase(critique string) bool {
	lowered := strings.ToLower(critique)
	for _, phrase := range StopPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// Generator produces the phase texts. Implementations own prompt assembly
// and the generation backend; the engine only sequences them.
type Generator interface {
	Draft(ctx context.Context, history []Message, query string, sampling SamplingConfig) (string, error)
	Critique(ctx context.Context, slot *Slot, sampling SamplingConfig) (string, error)
	Revise(ctx context.Context, slot *Slot, sampling SamplingConfig) (string, error)
}

// Scorer computes embedding-based similarity. Embed is split out so the
// anchor embedding can be reused across comparisons within one run.
type Scorer interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	FromVectors(a, b []float64) (float64, error)
}

// Accessor serializes access to a companion. The engine captures state and
// commits results inside With and generates outside it, so long generation
// calls never hold the session lock.
type Accessor interface {
	With(fn func(c *Companion) error) error
}

// RunResult summarizes one convergence run.
type RunResult struct {
	FinalAnswer string
	Loops       int
	Reason      string
	Similarity  *float64
}

// Engine drives the draft/critique/revise cycle for one slot until a
// critique declares the text done, consecutive texts converge, or the loop
// budget runs out.
type Engine struct {
	gen    Generator
	scorer Scorer
}

func NewEngine(gen Generator, scorer Scorer) *Engine {
	return &Engine{gen: gen, scorer: scorer}
}

// Run refines query to convergence. Every committed mutation is followed by
// afterCommit (may be nil), which callers use to snapshot the session.
// An iteration's critique and revision are committed together, so a
// cancellation mid-iteration never leaves the slot half-written.
func (e *Engine) Run(ctx context.Context, acc Accessor, query string, sampling SamplingConfig, afterCommit func()) (*RunResult, error) {
	maxLoops := sampling.MaxLoops
	if maxLoops <= 0 {
		maxLoops = DefaultMaxLoops
	}
	threshold := sampling.SimilarityThreshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	variant := sampling.Model
	if variant == "" {
		variant = ModeServer
	}

	// Draft phase: validate, capture history, generate off-lock, commit.
	var history []Message
	if err := acc.With(func(c *Companion) error {
		if _, err := ValidateDraft(c.CurrentSlot(), query, variant); err != nil {
			return err
		}
		history = c.HistoryCopy()
		return nil
	}); err != nil {
		return nil, err
	}

	draft, err := e.gen.Draft(ctx, history, query, sampling)
	if err != nil {
		return nil, WrapBackend("draft", err)
	}

	if err := acc.With(func(c *Companion) error {
		decision, err := ValidateDraft(c.CurrentSlot(), query, variant)
		if err != nil {
			return err
		}
		if decision.Fresh {
			c.StartSlot(decision.Query, draft, variant, sampling)
		} else {
			c.CurrentSlot().CommitDraft(draft, variant, sampling)
			c.ReplaceLastAnswer(draft)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	notify(afterCommit)

	var (
		prevDraft  string
		prevEmb    []float64
		lastScore  *float64
		current    = draft
		totalLoops = 0
	)

	for i := 1; i <= maxLoops; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		totalLoops = i

		working, err := e.captureSlot(acc, query, variant)
		if err != nil {
			return nil, err
		}

		critique, err := e.gen.Critique(ctx, working, sampling)
		if err != nil {
			return nil, WrapBackend("critique", err)
		}

		if ContainsStopPhrase(critique) {
			if err := e.commitIteration(acc, query, variant, func(slot *Slot, c *Companion) {
				slot.CommitCritique(critique, sampling)
			}); err != nil {
				return nil, err
			}
			notify(afterCommit)
			return &RunResult{
				FinalAnswer: current,
				Loops:       i,
				Reason:      ReasonNoImprovements,
				Similarity:  lastScore,
			}, nil
		}

		// Apply the critique to the working copy so the revision prompt
		// sees it; the real slot is committed once the revision is known.
		working.CommitCritique(critique, sampling)

		revision, err := e.gen.Revise(ctx, working, sampling)
		if err != nil {
			return nil, WrapBackend("revise", err)
		}

		var score *float64
		if prevDraft != "" {
			if prevEmb == nil {
				prevEmb, err = e.scorer.Embed(ctx, prevDraft)
				if err != nil {
					return nil, WrapBackend("embedding", err)
				}
			}
			revEmb, err := e.scorer.Embed(ctx, revision)
			if err != nil {
				return nil, WrapBackend("embedding", err)
			}
			value, err := e.scorer.FromVectors(prevEmb, revEmb)
			if err != nil {
				return nil, WrapBackend("embedding", err)
			}
			score = &value
			lastScore = score
		}

		if err := e.commitIteration(acc, query, variant, func(slot *Slot, c *Companion) {
			slot.CommitCritique(critique, sampling)
			slot.CommitRevision(revision, sampling)
			slot.SimilarityScore = score
			c.ReplaceLastAnswer(revision)
		}); err != nil {
			return nil, err
		}
		notify(afterCommit)

		if score != nil && *score >= threshold {
			return &RunResult{
				FinalAnswer: revision,
				Loops:       i,
				Reason:      ReasonConverged,
				Similarity:  score,
			}, nil
		}

		prevDraft = current
		prevEmb = nil
		current = revision
	}

	return &RunResult{
		FinalAnswer: current,
		Loops:       totalLoops,
		Reason:      ReasonMaxLoops,
		Similarity:  lastScore,
	}, nil
}

// captureSlot clones the current slot under the lock, failing when the
// companion no longer refines the query this run started with.
func (e *Engine) captureSlot(acc Accessor, query, variant string) (*Slot, error) {
	var clone *Slot
	err := acc.With(func(c *Companion) error {
		slot := c.CurrentSlot()
		if err := guardSlot(slot, query, variant); err != nil {
			return err
		}
		clone = slot.Clone()
		return nil
	})
	return clone, err
}

func (e *Engine) commitIteration(acc Accessor, query, variant string, apply func(slot *Slot, c *Companion)) error {
	return acc.With(func(c *Companion) error {
		slot := c.CurrentSlot()
		if err := guardSlot(slot, query, variant); err != nil {
			return err
		}
		apply(slot, c)
		return nil
	})
}

func guardSlot(slot *Slot, query, variant string) error {
	if slot == nil || slot.Query != query || slot.Variant != variant {
		return &ProtocolError{
			Code:    CodeInvalidRequest,
			Message: "slot changed while the refinement run was in flight",
		}
	}
	return nil
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
