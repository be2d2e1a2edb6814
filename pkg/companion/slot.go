package companion

// Slot records one logical query's refinement: the original draft plus the
// ordered critique/revision chain built on top of it. Revisions never
// outnumber critiques, and critiques run ahead of revisions by at most one.
type Slot struct {
	Query           string         `json:"query"`
	Draft           string         `json:"draft"`
	Variant         string         `json:"variant"`
	Critiques       []string       `json:"critique"`
	Revisions       []string       `json:"revision"`
	Sampling        SamplingConfig `json:"sampling,omitempty"`
	SimilarityScore *float64       `json:"similarity_score,omitempty"`
}

// NewSlot starts a fresh refinement record for query.
func NewSlot(query, draft, variant string, sampling SamplingConfig) *Slot {
	return &Slot{
		Query:     query,
		Draft:     draft,
		Variant:   variant,
		Critiques: []string{},
		Revisions: []string{},
		Sampling:  sampling,
	}
}

// Balanced reports whether every critique has a matching revision.
func (s *Slot) Balanced() bool {
	return len(s.Critiques) == len(s.Revisions)
}

// CommitDraft overwrites the draft in place. Only legal while no revisions
// exist; ValidateDraft enforces that before any commit happens.
func (s *Slot) CommitDraft(draft, variant string, sampling SamplingConfig) {
	s.Draft = draft
	s.Variant = variant
	s.Sampling = sampling
}

// CommitCritique applies the append-or-overwrite rule: a critique that is
// owed (counts balanced) appends; re-critiquing before a revision consumed
// the previous critique overwrites the last entry.
func (s *Slot) CommitCritique(text string, sampling SamplingConfig) {
	if len(s.Critiques) > len(s.Revisions) {
		s.Critiques[len(s.Critiques)-1] = text
	} else {
		s.Critiques = append(s.Critiques, text)
	}
	s.Sampling = sampling
}

// CommitRevision mirrors CommitCritique for the revision side: balanced
// counts mean the last revision is being re-produced and is overwritten,
// otherwise the revision answers the outstanding critique and appends.
func (s *Slot) CommitRevision(text string, sampling SamplingConfig) {
	if len(s.Critiques) == len(s.Revisions) {
		s.Revisions[len(s.Revisions)-1] = text
	} else {
		s.Revisions = append(s.Revisions, text)
	}
	s.Sampling = sampling
}

// CritiqueTarget is the text the next critique examines: the latest
// revision when one exists, otherwise the draft.
func (s *Slot) CritiqueTarget() string {
	if len(s.Revisions) > 0 {
		return s.Revisions[len(s.Revisions)-1]
	}
	return s.Draft
}

// ReviseTarget is the text the next revision rewrites. The first revision
// always rewrites the draft; later ones rewrite the latest revision.
func (s *Slot) ReviseTarget() string {
	if len(s.Critiques) > 1 && len(s.Revisions) > 0 {
		return s.Revisions[len(s.Revisions)-1]
	}
	return s.Draft
}

// LastCritique returns the newest critique, or "" when none exist.
func (s *Slot) LastCritique() string {
	if len(s.Critiques) == 0 {
		return ""
	}
	return s.Critiques[len(s.Critiques)-1]
}

// LastRevision returns the newest revision, or "" when none exist.
func (s *Slot) LastRevision() string {
	if len(s.Revisions) == 0 {
		return ""
	}
	return s.Revisions[len(s.Revisions)-1]
}

// FinalAnswer is the best text the slot currently holds.
func (s *Slot) FinalAnswer() string {
	if rev := s.LastRevision(); rev != "" {
		return rev
	}
	return s.Draft
}

// Clone returns a deep copy, used for snapshots handed outside the lock.
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	c := *s
	c.Critiques = append([]string(nil), s.Critiques...)
	c.Revisions = append([]string(nil), s.Revisions...)
	if s.SimilarityScore != nil {
		score := *s.SimilarityScore
		c.SimilarityScore = &score
	}
	return &c
}
