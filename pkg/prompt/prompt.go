package prompt

import (
	"fmt"
	"strings"
)

// DraftWindowSize is how many drafts the critique prompt surfaces: the
// original baseline plus the most recent revisions.
const DraftWindowSize = 3

// TemplateSet holds the five templates that drive one refinement cycle.
// System templates may carry a {context} slot for domain specialization;
// user templates use {user_input}, {draft}, {critique} and {prev_drafts}.
type TemplateSet struct {
	InitialSystem  string
	CritiqueSystem string
	RevisionSystem string
	CritiqueUser   string
	RevisionUser   string
}

// WithContext substitutes the domain context into the system templates.
func (t TemplateSet) WithContext(domainContext string) TemplateSet {
	vars := map[string]string{"context": domainContext}
	t.InitialSystem = Render(t.InitialSystem, vars)
	t.CritiqueSystem = Render(t.CritiqueSystem, vars)
	t.RevisionSystem = Render(t.RevisionSystem, vars)
	return t
}

// Render substitutes {name} placeholders with their values. Unknown
// placeholders are left untouched.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Store resolves the template set for a companion kind. Kinds without a
// registered override share the base set; the caller supplies the kind's
// domain context at resolution time.
type Store struct {
	base      TemplateSet
	overrides map[string]TemplateSet
}

func NewStore(base TemplateSet) *Store {
	return &Store{
		base:      base,
		overrides: make(map[string]TemplateSet),
	}
}

// Register installs a kind-specific template set, replacing the base.
func (s *Store) Register(kind string, set TemplateSet) {
	s.overrides[kind] = set
}

// ForKind returns the kind's template set with its domain context applied.
func (s *Store) ForKind(kind, domainContext string) TemplateSet {
	set := s.base
	if override, ok := s.overrides[kind]; ok {
		set = override
	}
	return set.WithContext(domainContext)
}

// DraftPrompts assembles the system prompt for an initial draft. The user
// content is the query itself; conversation history sits between the two.
func DraftPrompts(set TemplateSet, query string) (system, user string) {
	return set.InitialSystem, query
}

// CritiquePrompts assembles the critique prompts for the current draft text,
// surfacing the earlier-draft window when one exists.
func CritiquePrompts(set TemplateSet, query, draft, window string) (system, user string) {
	prevDrafts := ""
	if window != "" {
		prevDrafts = "Earlier drafts (oldest to newest):\n" + window
	}
	user = Render(set.CritiqueUser, map[string]string{
		"user_input":  query,
		"draft":       draft,
		"prev_drafts": prevDrafts,
	})
	return set.CritiqueSystem, user
}

// RevisionPrompts assembles the revision prompts from the draft under
// critique and the critique text.
func RevisionPrompts(set TemplateSet, query, draft, critique string) (system, user string) {
	user = Render(set.RevisionUser, map[string]string{
		"user_input": query,
		"draft":      draft,
		"critique":   critique,
	})
	return set.RevisionSystem, user
}

// DraftWindow renders the baseline draft plus up to n-1 of the most recent
// revisions, labelled so the reviewer can see the iteration trail. Returns
// "" when no draft exists.
func DraftWindow(draft string, revisions []string, n int) string {
	if draft == "" {
		return ""
	}
	if n < 1 {
		n = 1
	}

	entries := []string{"[ORIGINAL BASELINE]\n" + draft}

	recent := revisions
	if len(recent) > n-1 {
		recent = recent[len(recent)-(n-1):]
	}
	offset := len(revisions) - len(recent)
	for i, rev := range recent {
		entries = append(entries, fmt.Sprintf("[ITERATION %d]\n%s", offset+i+1, rev))
	}

	return strings.Join(entries, "\n\n---\n\n")
}
