package domain

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExecutionState is the tagged lifecycle state of an execution.
type ExecutionState string

// Possible execution states
const (
	// ExecutionStateUnconfigured: in progress, no configuration saved yet.
	ExecutionStateUnconfigured ExecutionState = "unconfigured"
	// ExecutionStateRunning: in progress with a configuration.
	ExecutionStateRunning ExecutionState = "running"
	// ExecutionStateFinished: answers may no longer be recorded.
	ExecutionStateFinished ExecutionState = "finished"
)

// Validation errors for executions
var (
	ErrEmptyExecutionOwnerID = errors.New("execution owner ID cannot be empty")
	ErrEmptyExecutionName    = errors.New("execution name cannot be empty")
	ErrNoExecutionSources    = errors.New("execution requires at least one list or resource")
)

// Execution is one practice session over an ordered resource sequence.
type Execution struct {
	ID         uuid.UUID        `json:"id"`
	OwnerID    uuid.UUID        `json:"owner_id"`
	Name       string           `json:"name"`
	Tags       []string         `json:"tags"`
	ListIDs    []uuid.UUID      `json:"list_ids"`
	InProgress bool             `json:"in_progress"`
	LoopCount  int              `json:"loop_count"`
	Cursor     int              `json:"cursor"`
	Config     *ExecutionConfig `json:"config,omitempty"`
	Counters   Counters         `json:"counters"`
	Version    int64            `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`

	Results *ResultSequence `json:"-"`
}

// NewExecution creates an unconfigured execution whose result sequence is the
// concatenation of each list's resources in list order. Repeated list ids are
// ignored after their first occurrence.
func NewExecution(ownerID uuid.UUID, lists []*List, now time.Time) (*Execution, error) {
	if len(lists) == 0 {
		return nil, NewValidationError("list_ids", "must not be empty", ErrNoExecutionSources)
	}

	seen := make(map[uuid.UUID]struct{}, len(lists))
	names := make([]string, 0, len(lists))
	var tags []string
	listIDs := make([]uuid.UUID, 0, len(lists))
	results := NewResultSequence()

	for _, list := range lists {
		if _, ok := seen[list.ID]; ok {
			continue
		}
		seen[list.ID] = struct{}{}
		listIDs = append(listIDs, list.ID)
		names = append(names, list.Name)
		tags = append(tags, list.Tags...)

		inList := make(map[uuid.UUID]struct{}, len(list.ResourceIDs))
		for _, resourceID := range list.ResourceIDs {
			if _, dup := inList[resourceID]; dup {
				continue
			}
			inList[resourceID] = struct{}{}
			lid := list.ID
			results.Append(resourceID, &lid)
		}
	}

	e := newExecution(ownerID, strings.Join(names, ", "), tags, listIDs, results, now)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewTemporaryExecution creates an ad-hoc execution over a flat resource
// selection. Duplicate resource ids are dropped.
func NewTemporaryExecution(
	ownerID uuid.UUID,
	name string,
	tags []string,
	resourceIDs []uuid.UUID,
	now time.Time,
) (*Execution, error) {
	if len(resourceIDs) == 0 {
		return nil, NewValidationError("resource_ids", "must not be empty", ErrNoExecutionSources)
	}

	results := NewResultSequence()
	seen := make(map[uuid.UUID]struct{}, len(resourceIDs))
	for _, id := range resourceIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		results.Append(id, nil)
	}

	e := newExecution(ownerID, strings.TrimSpace(name), tags, []uuid.UUID{}, results, now)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func newExecution(
	ownerID uuid.UUID,
	name string,
	tags []string,
	listIDs []uuid.UUID,
	results *ResultSequence,
	now time.Time,
) *Execution {
	return &Execution{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		Tags:       NormalizeTags(tags),
		ListIDs:    listIDs,
		InProgress: true,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		Results:    results,
	}
}

// Validate checks if the Execution has valid data.
func (e *Execution) Validate() error {
	if e.OwnerID == uuid.Nil {
		return NewValidationError("owner_id", "cannot be empty", ErrEmptyExecutionOwnerID)
	}
	if e.Name == "" {
		return NewValidationError("name", "cannot be empty", ErrEmptyExecutionName)
	}
	if e.Results == nil {
		return NewValidationError("results", "cannot be nil", ErrValidation)
	}
	if e.InProgress && !e.Counters.IsZero() {
		return NewValidationError("counters", "must be zero until the execution finishes", ErrValidation)
	}
	if e.Cursor < 0 || e.Cursor > e.Results.Len() {
		return NewValidationError("cursor", "out of range", ErrInvalidCursor)
	}
	if e.Config != nil {
		if err := e.Config.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// State derives the tagged lifecycle state.
func (e *Execution) State() ExecutionState {
	switch {
	case !e.InProgress:
		return ExecutionStateFinished
	case e.Config == nil:
		return ExecutionStateUnconfigured
	default:
		return ExecutionStateRunning
	}
}

// IsTemporary reports whether the execution is not tied to any list.
func (e *Execution) IsTemporary() bool {
	return len(e.ListIDs) == 0
}

// ListKey is the order-independent identity of the source list set.
// Temporary executions have an empty key and never de-duplicate.
func (e *Execution) ListKey() string {
	return ListKey(e.ListIDs)
}

// ListKey builds the canonical key for a set of list ids.
func ListKey(ids []uuid.UUID) string {
	if len(ids) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		s := id.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		keys = append(keys, s)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// CheckVersion rejects a stale caller. A nil expected version skips the check.
func (e *Execution) CheckVersion(expected *int64) error {
	if expected != nil && *expected != e.Version {
		return ErrStaleVersion
	}
	return nil
}

func (e *Execution) requireInProgress() error {
	if !e.InProgress {
		return ErrNotInProgress
	}
	return nil
}

func (e *Execution) touch(now time.Time) {
	e.UpdatedAt = now
	e.Version++
}

// Configure merges patch onto the current configuration, or onto defaults when
// none exists yet. The first configuration that requests shuffle permutes the
// result sequence; the sequence is sealed afterwards either way.
// Returns whether the sequence was shuffled.
func (e *Execution) Configure(patch ConfigPatch, defaults ExecutionConfig, rng IntN, now time.Time) (bool, error) {
	if err := e.requireInProgress(); err != nil {
		return false, err
	}

	first := e.Config == nil
	base := defaults
	if !first {
		base = *e.Config
	}

	merged := patch.Apply(base)
	if err := merged.Validate(); err != nil {
		return false, err
	}

	shuffled := false
	if first && merged.Shuffle {
		shuffled = e.Results.ShuffleOnce(rng)
	}
	e.Results.Seal()

	e.Config = &merged
	e.touch(now)
	return shuffled, nil
}

// RecordAnswer writes outcome to the entry matching (resourceID, listID) and
// moves the cursor to the caller-supplied position.
func (e *Execution) RecordAnswer(
	resourceID uuid.UUID,
	listID *uuid.UUID,
	cursor int,
	outcome Outcome,
	now time.Time,
) (ResultEntry, error) {
	if err := e.requireInProgress(); err != nil {
		return ResultEntry{}, err
	}
	if err := outcome.Validate(); err != nil {
		return ResultEntry{}, err
	}
	if cursor < 0 || cursor > e.Results.Len() {
		return ResultEntry{}, NewValidationError("position", "out of range", ErrInvalidCursor)
	}

	entry, err := e.Results.SetOutcome(resourceID, listID, outcome)
	if err != nil {
		return ResultEntry{}, err
	}

	e.Cursor = cursor
	e.touch(now)
	return entry, nil
}

// Restart moves the cursor back to the start and counts another loop.
// Recorded outcomes are kept.
func (e *Execution) Restart(now time.Time) error {
	if err := e.requireInProgress(); err != nil {
		return err
	}
	e.LoopCount++
	e.Cursor = 0
	e.touch(now)
	return nil
}

// Finish closes the execution and recomputes its counters from a full pass
// over the result sequence. It is allowed on finished executions too.
func (e *Execution) Finish(now time.Time) Breakdown {
	b := e.Results.CountByList()
	e.InProgress = false
	e.Counters = b.Total
	e.Cursor = 0
	e.touch(now)
	return b
}
