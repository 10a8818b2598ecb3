package domain

import (
	"sort"

	"github.com/google/uuid"
)

// ResultEntry is one resource's outcome within an execution.
// Position defines presentation order and is unique within the execution.
type ResultEntry struct {
	ID         uuid.UUID  `json:"id"`
	ResourceID uuid.UUID  `json:"resource_id"`
	ListID     *uuid.UUID `json:"list_id,omitempty"`
	Outcome    Outcome    `json:"outcome"`
	Position   int        `json:"position"`
}

// matches reports whether the entry belongs to (resourceID, listID).
// A nil listID only matches ad-hoc entries.
func (e ResultEntry) matches(resourceID uuid.UUID, listID *uuid.UUID) bool {
	if e.ResourceID != resourceID {
		return false
	}
	if e.ListID == nil || listID == nil {
		return e.ListID == nil && listID == nil
	}
	return *e.ListID == *listID
}

// IntN is the source of randomness used by ShuffleOnce.
// *rand.Rand from math/rand/v2 satisfies it.
type IntN interface {
	IntN(n int) int
}

// ResultSequence is the ordered, mutable collection of result entries that
// belongs to one execution. Once sealed, its position assignment never changes.
type ResultSequence struct {
	entries []ResultEntry
	sealed  bool
}

// NewResultSequence returns an empty, unsealed sequence.
func NewResultSequence() *ResultSequence {
	return &ResultSequence{}
}

// RestoreResultSequence rebuilds a sequence from persisted entries.
// Entries are ordered by position regardless of the input order.
func RestoreResultSequence(entries []ResultEntry, sealed bool) *ResultSequence {
	cp := make([]ResultEntry, len(entries))
	copy(cp, entries)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Position < cp[j].Position })
	return &ResultSequence{entries: cp, sealed: sealed}
}

// Append adds an unanswered entry at the next position.
func (s *ResultSequence) Append(resourceID uuid.UUID, listID *uuid.UUID) ResultEntry {
	position := 0
	if n := len(s.entries); n > 0 {
		position = s.entries[n-1].Position + 1
	}

	var lid *uuid.UUID
	if listID != nil {
		v := *listID
		lid = &v
	}

	entry := ResultEntry{
		ID:         uuid.New(),
		ResourceID: resourceID,
		ListID:     lid,
		Outcome:    OutcomeUnanswered,
		Position:   position,
	}
	s.entries = append(s.entries, entry)
	return entry
}

// Len returns the number of entries.
func (s *ResultSequence) Len() int {
	return len(s.entries)
}

// Sealed reports whether the position assignment is frozen.
func (s *ResultSequence) Sealed() bool {
	return s.sealed
}

// Seal freezes the position assignment. Subsequent ShuffleOnce calls are no-ops.
func (s *ResultSequence) Seal() {
	s.sealed = true
}

// hasAnswers reports whether any entry has left the unanswered state.
func (s *ResultSequence) hasAnswers() bool {
	for _, e := range s.entries {
		if e.Outcome != OutcomeUnanswered {
			return true
		}
	}
	return false
}

// ShuffleOnce permutes the position assignment with a Fisher–Yates shuffle
// and seals the sequence. It is a no-op when the sequence is already sealed
// or any outcome has been recorded. Returns true when a shuffle happened.
func (s *ResultSequence) ShuffleOnce(rng IntN) bool {
	if s.sealed || s.hasAnswers() {
		return false
	}

	positions := make([]int, len(s.entries))
	for i, e := range s.entries {
		positions[i] = e.Position
	}

	for i := len(s.entries) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
	}

	for i := range s.entries {
		s.entries[i].Position = positions[i]
	}

	s.sealed = true
	return true
}

// SetOutcome overwrites the outcome of the entry matching (resourceID, listID).
// Returns ErrResultEntryNotFound when no entry matches.
func (s *ResultSequence) SetOutcome(resourceID uuid.UUID, listID *uuid.UUID, outcome Outcome) (ResultEntry, error) {
	if err := outcome.Validate(); err != nil {
		return ResultEntry{}, err
	}

	for i := range s.entries {
		if s.entries[i].matches(resourceID, listID) {
			// unanswered never overwrites a recorded verdict
			if outcome.Answered() {
				s.entries[i].Outcome = outcome
			}
			return s.entries[i], nil
		}
	}
	return ResultEntry{}, ErrResultEntryNotFound
}

// Snapshot returns a copy of the entries in presentation order.
func (s *ResultSequence) Snapshot() []ResultEntry {
	cp := make([]ResultEntry, len(s.entries))
	copy(cp, s.entries)
	return cp
}

// Filter returns the entries with the given outcome, in presentation order.
func (s *ResultSequence) Filter(outcome Outcome) []ResultEntry {
	out := make([]ResultEntry, 0)
	for _, e := range s.entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// Count tallies every entry in one pass.
func (s *ResultSequence) Count() Counters {
	var c Counters
	for _, e := range s.entries {
		c.Record(e.Outcome)
	}
	return c
}

// Breakdown is the result of grouping a sequence by originating list.
// Entries without a list id are counted under AdHoc and excluded from PerList.
type Breakdown struct {
	Total   Counters
	PerList map[uuid.UUID]Counters
	AdHoc   Counters
}

// CountByList tallies every entry once, grouped by originating list.
func (s *ResultSequence) CountByList() Breakdown {
	b := Breakdown{PerList: make(map[uuid.UUID]Counters)}
	for _, e := range s.entries {
		if e.ListID == nil {
			b.AdHoc.Record(e.Outcome)
			continue
		}
		c := b.PerList[*e.ListID]
		c.Record(e.Outcome)
		b.PerList[*e.ListID] = c
	}

	b.Total = b.AdHoc
	for _, c := range b.PerList {
		b.Total = b.Total.Add(c)
	}
	return b
}
