package dto

import "time"

// Response statuses for phase operations.
const (
	StatusOK                      = "ok"
	StatusClientExecutionRequired = "client_execution_required"
	StatusError                   = "error"
)

// SamplingConfigDTO carries per-call generation overrides. Zero values mean
// "keep the companion's current setting".
type SamplingConfigDTO struct {
	Model               string  `json:"model,omitempty"`
	Temperature         float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens           int     `json:"max_tokens,omitempty" validate:"omitempty,gte=1,lte=128000"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty" validate:"omitempty,gte=0.90,lte=0.99"`
	MaxLoops            int     `json:"max_loops,omitempty" validate:"omitempty,gte=1,lte=10"`
	ExecutionMode       string  `json:"execution_mode,omitempty" validate:"omitempty,oneof=server client"`
}

// --- Phase requests ---

// DraftRequest starts or re-enters a slot. A blank query reuses the current
// slot's query; a blank session id creates a fresh session.
type DraftRequest struct {
	SessionID     string             `json:"session_id,omitempty" validate:"omitempty,max=64"`
	CompanionKind string             `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
	Query         string             `json:"query,omitempty" validate:"omitempty,max=32000"`
	Sampling      *SamplingConfigDTO `json:"sampling,omitempty"`
}

// CritiqueRequest critiques the slot's current text. Query and target draft
// are resolved server-side from the run log.
type CritiqueRequest struct {
	SessionID     string             `json:"session_id" validate:"required,max=64"`
	CompanionKind string             `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
	Sampling      *SamplingConfigDTO `json:"sampling,omitempty"`
}

// ReviseRequest revises the slot's current text from its latest critique.
type ReviseRequest struct {
	SessionID     string             `json:"session_id" validate:"required,max=64"`
	CompanionKind string             `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
	Sampling      *SamplingConfigDTO `json:"sampling,omitempty"`
}

// --- Completion requests (client-executed generation) ---

type DraftCompleteRequest struct {
	SessionID     string             `json:"session_id" validate:"required,max=64"`
	CompanionKind string             `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
	Query         string             `json:"query" validate:"required,max=32000"`
	Draft         string             `json:"draft" validate:"required"`
	Nonce         string             `json:"nonce" validate:"required"`
	Sampling      *SamplingConfigDTO `json:"sampling,omitempty"`
}

type CritiqueCompleteRequest struct {
	SessionID     string             `json:"session_id" validate:"required,max=64"`
	CompanionKind string             `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
	Draft         string             `json:"draft" validate:"required"`
	Critique      string             `json:"critique" validate:"required"`
	Nonce         string             `json:"nonce" validate:"required"`
	Sampling      *SamplingConfigDTO `json:"sampling,omitempty"`
}

type ReviseCompleteRequest struct {
	SessionID     string             `json:"session_id" validate:"required,max=64"`
	CompanionKind string             `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
	Critique      string             `json:"critique" validate:"required"`
	Revision      string             `json:"revision" validate:"required"`
	Nonce         string             `json:"nonce" validate:"required"`
	Sampling      *SamplingConfigDTO `json:"sampling,omitempty"`
}

// --- Run-to-convergence ---

type RefineRequest struct {
	SessionID     string             `json:"session_id,omitempty" validate:"omitempty,max=64"`
	CompanionKind string             `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
	Query         string             `json:"query" validate:"required,max=32000"`
	Sampling      *SamplingConfigDTO `json:"sampling,omitempty"`
}

// --- Responses ---

// PhaseResponse is the envelope every phase and completion operation
// returns. Status "ok" carries the committed content; status
// "client_execution_required" carries the prompt material and nonce the
// caller needs to run the step on its own generator.
type PhaseResponse struct {
	Status        string            `json:"status"`
	SessionID     string            `json:"session_id"`
	CompanionKind string            `json:"companion_kind"`
	Phase         string            `json:"phase"`
	Content       string            `json:"content,omitempty"`
	Variant       string            `json:"variant,omitempty"`
	Overwrote     bool              `json:"overwrote,omitempty"`
	Iteration     int               `json:"iteration,omitempty"`
	Similarity    *float64          `json:"similarity,omitempty"`
	Converged     bool              `json:"converged,omitempty"`
	StopSignal    bool              `json:"stop_signal,omitempty"`
	SystemPrompt  string            `json:"system_prompt,omitempty"`
	UserPrompt    string            `json:"user_prompt,omitempty"`
	Nonce         string            `json:"nonce,omitempty"`
	Sampling      SamplingConfigDTO `json:"sampling"`
	Warning       string            `json:"warning,omitempty"`
}

type RefineResponse struct {
	SessionID     string   `json:"session_id"`
	CompanionKind string   `json:"companion_kind"`
	FinalAnswer   string   `json:"final_answer"`
	Loops         int      `json:"loops"`
	Reason        string   `json:"reason"`
	Similarity    *float64 `json:"similarity,omitempty"`
	Warning       string   `json:"warning,omitempty"`
}

// ErrorResponse is the machine-readable failure envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Inspection ---

type SessionQueryRequest struct {
	SessionID     string `json:"session_id" validate:"required,max=64"`
	CompanionKind string `json:"companion_kind,omitempty" validate:"omitempty,max=32"`
}

type HistoryMessageDTO struct {
	Role    string `json:"type"`
	Content string `json:"content"`
}

type GetHistoryResponse struct {
	SessionID     string              `json:"session_id"`
	CompanionKind string              `json:"companion_kind"`
	Messages      []HistoryMessageDTO `json:"messages"`
}

type SlotDTO struct {
	Query           string            `json:"query"`
	Draft           string            `json:"draft"`
	Variant         string            `json:"variant"`
	Critiques       []string          `json:"critique"`
	Revisions       []string          `json:"revision"`
	Sampling        SamplingConfigDTO `json:"sampling"`
	SimilarityScore *float64          `json:"similarity_score,omitempty"`
}

type GetRunLogResponse struct {
	SessionID     string    `json:"session_id"`
	CompanionKind string    `json:"companion_kind"`
	Slots         []SlotDTO `json:"run_log"`
}

type SessionMetadataResponse struct {
	SessionID       string    `json:"session_id"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccessed    time.Time `json:"last_accessed"`
	CompanionKinds  []string  `json:"companion_kinds"`
	TotalRequests   int       `json:"total_requests"`
	TotalIterations int       `json:"total_iterations"`
}

type CompanionKindDTO struct {
	Kind                string  `json:"kind"`
	MaxLoops            int     `json:"max_loops"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

type ListKindsResponse struct {
	Kinds []CompanionKindDTO `json:"kinds"`
}

type TranscriptResponse struct {
	SessionID     string `json:"session_id"`
	CompanionKind string `json:"companion_kind"`
	Transcript    string `json:"transcript"`
}
