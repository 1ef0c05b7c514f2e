package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryKind discriminates journal entries. The set is closed: every entry is
// exactly one of these kinds and carries the matching payload.
type EntryKind string

const (
	// KindUserInput records the text the user submitted for a turn.
	KindUserInput EntryKind = "user_input"

	// KindDecision records an action the pipeline decided to take and why.
	KindDecision EntryKind = "decision"

	// KindActionResult records the outcome of an executed action.
	KindActionResult EntryKind = "action_result"
)

// UserInputPayload is the payload for KindUserInput entries.
type UserInputPayload struct {
	Text string
}

// DecisionPayload is the payload for KindDecision entries.
type DecisionPayload struct {
	Action    string
	Rationale string
}

// ActionResultPayload is the payload for KindActionResult entries.
type ActionResultPayload struct {
	Action string
	Result string
	Err    string
}

// Entry is one journal record. Exactly one payload pointer is non-nil,
// matching Kind.
type Entry struct {
	ID   string
	Kind EntryKind
	At   time.Time

	UserInput    *UserInputPayload
	Decision     *DecisionPayload
	ActionResult *ActionResultPayload
}

// Journal is an in-memory, append-only log of what happened during a turn.
// It is safe for concurrent use.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// AddUserInput appends a user-input entry.
func (j *Journal) AddUserInput(text string) {
	j.append(Entry{
		Kind:      KindUserInput,
		UserInput: &UserInputPayload{Text: text},
	})
}

// AddDecision appends a decision entry.
func (j *Journal) AddDecision(action, rationale string) {
	j.append(Entry{
		Kind:     KindDecision,
		Decision: &DecisionPayload{Action: action, Rationale: rationale},
	})
}

// AddActionResult appends an action-result entry. A nil err records success.
func (j *Journal) AddActionResult(action, result string, err error) {
	p := &ActionResultPayload{Action: action, Result: result}
	if err != nil {
		p.Err = err.Error()
	}
	j.append(Entry{Kind: KindActionResult, ActionResult: p})
}

func (j *Journal) append(e Entry) {
	e.ID = uuid.New().String()
	e.At = time.Now()
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

// Entries returns a copy of all entries in insertion order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// ByKind returns the entries of one kind, in insertion order.
func (j *Journal) ByKind(kind EntryKind) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Entry
	for _, e := range j.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
