package companion

// Phase identifies one step of the refinement cycle.
type Phase string

const (
	PhaseDraft    Phase = "draft"
	PhaseCritique Phase = "critique"
	PhaseRevise   Phase = "revise"
)

// Convergence loop states.
type LoopState string

const (
	StateInitial    LoopState = "initial"
	StateCritiquing LoopState = "critiquing"
	StateRevising   LoopState = "revising"
	StateComplete   LoopState = "complete"
)

// DraftDecision is the outcome of validating a draft call against the
// current slot.
type DraftDecision struct {
	// Query is the effective query after blank-means-reuse resolution.
	Query string
	// Fresh means a brand-new slot must be started (new query, new
	// variant, or no slot yet).
	Fresh bool
	// Overwrite means the existing slot's draft is replaced in place and
	// the caller must be told about it.
	Overwrite bool
}

// ValidateDraft decides what a draft call may do to the current slot.
// A blank newQuery reuses the current slot's query. Re-drafting the same
// query with the same variant is blocked outright once revisions exist,
// and flagged as an overwrite otherwise.
func ValidateDraft(slot *Slot, newQuery, newVariant string) (DraftDecision, error) {
	if slot == nil {
		if newQuery == "" {
			return DraftDecision{}, &ProtocolError{
				Code:    CodeInvalidRequest,
				Message: "query is required for the first draft",
			}
		}
		return DraftDecision{Query: newQuery, Fresh: true}, nil
	}

	query := newQuery
	if query == "" {
		query = slot.Query
	}

	if query != slot.Query || newVariant != slot.Variant {
		return DraftDecision{Query: query, Fresh: true}, nil
	}

	if len(slot.Revisions) > 0 {
		return DraftDecision{}, ErrRevisionsExist
	}
	return DraftDecision{Query: query, Overwrite: true}, nil
}

// ValidateCritique requires a non-empty draft on the current slot.
func ValidateCritique(slot *Slot) error {
	if slot == nil || slot.Draft == "" {
		return ErrNoDraft
	}
	return nil
}

// ValidateRevise requires a draft, at least one critique, and an
// outstanding critique that no revision has consumed yet.
func ValidateRevise(slot *Slot) error {
	if slot == nil || slot.Draft == "" {
		return ErrNoDraft
	}
	if len(slot.Critiques) == 0 {
		return ErrNoCritique
	}
	if len(slot.Critiques) <= len(slot.Revisions) {
		return ErrAlreadyBalanced
	}
	return nil
}
