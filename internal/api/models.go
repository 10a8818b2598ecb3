package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/service/execution"
)

// StartExecutionRequest defines the payload for starting a list execution.
type StartExecutionRequest struct {
	ListIDs []uuid.UUID `json:"list_ids" validate:"required,min=1,max=50,dive,required"`
}

// StartTemporaryRequest defines the payload for an ad-hoc execution over
// individual resources.
type StartTemporaryRequest struct {
	Name        string      `json:"name"         validate:"required,max=200"`
	Tags        []string    `json:"tags"         validate:"max=20,dive,required,max=64"`
	ResourceIDs []uuid.UUID `json:"resource_ids" validate:"required,min=1,max=1000,dive,required"`
}

// ConfigureRequest is a partial execution configuration. Omitted fields keep
// their current value.
type ConfigureRequest struct {
	QuestionLanguage *string `json:"question_language,omitempty" validate:"omitempty,oneof=primary secondary"`
	AutoPlayQuestion *bool   `json:"auto_play_question,omitempty"`
	AutoPlayAnswer   *bool   `json:"auto_play_answer,omitempty"`
	AutoAdvance      *bool   `json:"auto_advance,omitempty"`
	LoopMode         *bool   `json:"loop_mode,omitempty"`
	Shuffle          *bool   `json:"shuffle,omitempty"`
	Version          *int64  `json:"version,omitempty"            validate:"omitempty,gte=0"`
}

// Patch converts the request into a domain.ConfigPatch.
func (r ConfigureRequest) Patch() domain.ConfigPatch {
	patch := domain.ConfigPatch{
		AutoPlayQuestion: r.AutoPlayQuestion,
		AutoPlayAnswer:   r.AutoPlayAnswer,
		AutoAdvance:      r.AutoAdvance,
		LoopMode:         r.LoopMode,
		Shuffle:          r.Shuffle,
	}
	if r.QuestionLanguage != nil {
		lang := domain.QuestionLanguage(*r.QuestionLanguage)
		patch.QuestionLanguage = &lang
	}
	return patch
}

// RecordAnswerRequest defines the payload for recording one answer.
// ListID is omitted for entries of a temporary execution.
type RecordAnswerRequest struct {
	ResourceID uuid.UUID  `json:"resource_id"       validate:"required"`
	ListID     *uuid.UUID `json:"list_id,omitempty"`
	Position   int        `json:"position"          validate:"gte=0"`
	Outcome    string     `json:"outcome"           validate:"required,oneof=unanswered pass fail"`
	Version    *int64     `json:"version,omitempty" validate:"omitempty,gte=0"`
}

// VersionRequest is the optional body of restart and finish.
type VersionRequest struct {
	Version *int64 `json:"version,omitempty" validate:"omitempty,gte=0"`
}

// ExecutionResponse represents an execution without its results.
type ExecutionResponse struct {
	ID         string                  `json:"id"`
	Name       string                  `json:"name"`
	Tags       []string                `json:"tags"`
	ListIDs    []string                `json:"list_ids"`
	Temporary  bool                    `json:"temporary"`
	State      string                  `json:"state"`
	InProgress bool                    `json:"in_progress"`
	LoopCount  int                     `json:"loop_count"`
	Cursor     int                     `json:"cursor"`
	Config     *domain.ExecutionConfig `json:"config,omitempty"`
	Counters   domain.Counters         `json:"counters"`
	Version    int64                   `json:"version"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// ResourceResponse is the display content of a resource.
type ResourceResponse struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	PrimaryText    string  `json:"primary_text"`
	SecondaryText  string  `json:"secondary_text"`
	PrimaryAudio   *string `json:"primary_audio,omitempty"`
	SecondaryAudio *string `json:"secondary_audio,omitempty"`
}

// ResultResponse is one result entry, with its resource when it still exists.
type ResultResponse struct {
	ID         string            `json:"id"`
	ResourceID string            `json:"resource_id"`
	ListID     *string           `json:"list_id,omitempty"`
	Outcome    string            `json:"outcome"`
	Position   int               `json:"position"`
	Resource   *ResourceResponse `json:"resource,omitempty"`
}

// ExecutionViewResponse is an execution with its ordered results.
type ExecutionViewResponse struct {
	ExecutionResponse
	Results []ResultResponse `json:"results"`
}

func executionToResponse(e *domain.Execution) ExecutionResponse {
	listIDs := make([]string, 0, len(e.ListIDs))
	for _, id := range e.ListIDs {
		listIDs = append(listIDs, id.String())
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return ExecutionResponse{
		ID:         e.ID.String(),
		Name:       e.Name,
		Tags:       tags,
		ListIDs:    listIDs,
		Temporary:  e.IsTemporary(),
		State:      string(e.State()),
		InProgress: e.InProgress,
		LoopCount:  e.LoopCount,
		Cursor:     e.Cursor,
		Config:     e.Config,
		Counters:   e.Counters,
		Version:    e.Version,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func executionsToResponse(executions []*domain.Execution) []ExecutionResponse {
	out := make([]ExecutionResponse, 0, len(executions))
	for _, e := range executions {
		out = append(out, executionToResponse(e))
	}
	return out
}

func viewToResponse(v *execution.ExecutionView) ExecutionViewResponse {
	results := make([]ResultResponse, 0, len(v.Results))
	for _, r := range v.Results {
		results = append(results, resultToResponse(r))
	}
	return ExecutionViewResponse{
		ExecutionResponse: executionToResponse(v.Execution),
		Results:           results,
	}
}

func resultToResponse(r execution.ResultView) ResultResponse {
	out := ResultResponse{
		ID:         r.ID.String(),
		ResourceID: r.ResourceID.String(),
		Outcome:    string(r.Outcome),
		Position:   r.Position,
	}
	if r.ListID != nil {
		listID := r.ListID.String()
		out.ListID = &listID
	}
	if r.Resource != nil {
		out.Resource = &ResourceResponse{
			ID:             r.Resource.ID.String(),
			Kind:           string(r.Resource.Kind),
			PrimaryText:    r.Resource.PrimaryText,
			SecondaryText:  r.Resource.SecondaryText,
			PrimaryAudio:   r.Resource.PrimaryAudio,
			SecondaryAudio: r.Resource.SecondaryAudio,
		}
	}
	return out
}
