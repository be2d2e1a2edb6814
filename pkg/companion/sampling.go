package companion

// Execution modes for a phase step.
const (
	ModeServer = "server"
	ModeClient = "client"
)

// ClientVariant tags slot entries whose text was generated by the caller's
// own backend rather than the server's.
const ClientVariant = "client"

// SamplingConfig is the generation configuration applied to a phase call.
// The last-used value is stored on the slot and replaced on every call.
type SamplingConfig struct {
	Model               string  `json:"model,omitempty"`
	Temperature         float64 `json:"temperature,omitempty"`
	MaxTokens           int     `json:"max_tokens,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	MaxLoops            int     `json:"max_loops,omitempty"`
	ExecutionMode       string  `json:"execution_mode,omitempty"`
}

// MergeSampling overlays non-zero fields of override onto base.
func MergeSampling(base, override SamplingConfig) SamplingConfig {
	merged := base
	if override.Model != "" {
		merged.Model = override.Model
	}
	if override.Temperature != 0 {
		merged.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		merged.MaxTokens = override.MaxTokens
	}
	if override.SimilarityThreshold != 0 {
		merged.SimilarityThreshold = override.SimilarityThreshold
	}
	if override.MaxLoops != 0 {
		merged.MaxLoops = override.MaxLoops
	}
	if override.ExecutionMode != "" {
		merged.ExecutionMode = override.ExecutionMode
	}
	return merged
}
