package companion

// Message roles follow the persisted history format.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// MaxHistoryPairs bounds the conversation history carried into prompts.
const MaxHistoryPairs = 3

// Message is one entry of a companion's conversation history.
type Message struct {
	Role    string `json:"type"`
	Content string `json:"content"`
}

// Companion holds the refinement state for one (session, kind) pair:
// bounded conversation history plus the ordered run log of slots.
type Companion struct {
	Kind     string         `json:"kind"`
	History  []Message      `json:"history"`
	Slots    []*Slot        `json:"run_log"`
	Sampling SamplingConfig `json:"sampling,omitempty"`
}

// New creates an empty companion of the given kind with its tuned defaults.
func New(kind string, sampling SamplingConfig) *Companion {
	return &Companion{
		Kind:     kind,
		History:  []Message{},
		Slots:    []*Slot{},
		Sampling: sampling,
	}
}

// CurrentSlot returns the newest slot, or nil when none exist.
func (c *Companion) CurrentSlot() *Slot {
	if len(c.Slots) == 0 {
		return nil
	}
	return c.Slots[len(c.Slots)-1]
}

// StartSlot appends a fresh slot and records the exchange in history.
func (c *Companion) StartSlot(query, draft, variant string, sampling SamplingConfig) *Slot {
	slot := NewSlot(query, draft, variant, sampling)
	c.Slots = append(c.Slots, slot)
	c.AppendExchange(query, draft)
	return slot
}

// AppendExchange records a (human, ai) pair and trims to the history bound.
func (c *Companion) AppendExchange(query, answer string) {
	c.History = append(c.History,
		Message{Role: RoleHuman, Content: query},
		Message{Role: RoleAI, Content: answer},
	)
	c.History = TrimHistory(c.History, MaxHistoryPairs)
}

// ReplaceLastAnswer swaps the newest ai message for the given text, so the
// history always reflects the latest accepted draft or revision.
func (c *Companion) ReplaceLastAnswer(answer string) {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Role == RoleAI {
			c.History[i].Content = answer
			return
		}
	}
	c.History = append(c.History, Message{Role: RoleAI, Content: answer})
}

// HistoryCopy returns a defensive copy safe to use outside the session lock.
func (c *Companion) HistoryCopy() []Message {
	return append([]Message(nil), c.History...)
}

// Clone returns a detached deep copy safe to serialize off the session lock.
func (c *Companion) Clone() *Companion {
	slots := make([]*Slot, len(c.Slots))
	for i, slot := range c.Slots {
		slots[i] = slot.Clone()
	}
	return &Companion{
		Kind:     c.Kind,
		History:  c.HistoryCopy(),
		Slots:    slots,
		Sampling: c.Sampling,
	}
}

// TrimHistory keeps the most recent maxPairs (human, ai) pairs, dropping
// the oldest messages first.
func TrimHistory(history []Message, maxPairs int) []Message {
	max := maxPairs * 2
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
