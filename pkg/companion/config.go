package companion

// Config tunes one companion kind: the domain context injected into its
// prompt templates plus the convergence defaults.
type Config struct {
	Kind                string
	DomainContext       string
	MaxLoops            int
	SimilarityThreshold float64
}

// Built-in companion kinds.
const (
	KindGeneric   = "generic"
	KindSynthesis = "synthesis"
	KindTriage    = "triage"
	KindStrategy  = "strategy"
)

const (
	DefaultMaxLoops            = 3
	DefaultSimilarityThreshold = 0.98
)

// Registry maps companion kinds to their configs. Unknown kinds fall back
// to generic.
type Registry struct {
	configs map[string]Config
}

func NewRegistry(configs ...Config) *Registry {
	r := &Registry{configs: make(map[string]Config)}
	for _, cfg := range configs {
		r.configs[cfg.Kind] = cfg
	}
	if _, ok := r.configs[KindGeneric]; !ok {
		r.configs[KindGeneric] = Config{
			Kind:                KindGeneric,
			MaxLoops:            DefaultMaxLoops,
			SimilarityThreshold: DefaultSimilarityThreshold,
		}
	}
	return r
}

// Lookup resolves a kind, falling back to generic for unknown names.
func (r *Registry) Lookup(kind string) Config {
	if cfg, ok := r.configs[kind]; ok {
		return cfg
	}
	return r.configs[KindGeneric]
}

// Retune replaces a kind's convergence defaults, keeping its domain
// context. Zero values leave the current setting; unknown kinds are
// ignored.
func (r *Registry) Retune(kind string, maxLoops int, threshold float64) {
	cfg, ok := r.configs[kind]
	if !ok {
		return
	}
	if maxLoops > 0 {
		cfg.MaxLoops = maxLoops
	}
	if threshold > 0 {
		cfg.SimilarityThreshold = threshold
	}
	r.configs[kind] = cfg
}

// Kinds lists the registered kind names.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.configs))
	for kind := range r.configs {
		kinds = append(kinds, kind)
	}
	return kinds
}

// DefaultRegistry returns the built-in kinds: a generic refiner, a fast
// synthesis kind that trades loops for latency, a structured triage kind,
// and a cross-functional strategy kind with a relaxed convergence bar.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Config{
			Kind:                KindGeneric,
			MaxLoops:            DefaultMaxLoops,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		Config{
			Kind:                KindSynthesis,
			DomainContext:       "You specialize in marketing and communications: audiences, positioning, messaging, campaign trade-offs.",
			MaxLoops:            2,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		Config{
			Kind:                KindTriage,
			DomainContext:       "You specialize in engineering incident triage: reproduce, isolate, rank by severity, and propose the smallest safe fix.",
			MaxLoops:            DefaultMaxLoops,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		Config{
			Kind:                KindStrategy,
			DomainContext:       "You specialize in cross-functional strategy: synthesize engineering, product, and business constraints into one coherent plan.",
			MaxLoops:            DefaultMaxLoops,
			SimilarityThreshold: 0.97,
		},
	)
}

// DefaultSampling derives the sampling defaults a fresh companion of this
// kind starts with.
func (c Config) DefaultSampling(model string, temperature float64) SamplingConfig {
	return SamplingConfig{
		Model:               model,
		Temperature:         temperature,
		SimilarityThreshold: c.SimilarityThreshold,
		MaxLoops:            c.MaxLoops,
		ExecutionMode:       ModeServer,
	}
}
