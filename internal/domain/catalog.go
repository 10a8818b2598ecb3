package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind is the flavour of a practice resource.
type ResourceKind string

// Possible resource kinds
const (
	ResourceKindPhrase     ResourceKind = "phrase"
	ResourceKindVocabulary ResourceKind = "vocabulary"
	ResourceKindParagraph  ResourceKind = "paragraph"
)

// Resource is the read-only display content of a practice item.
// The execution engine treats it as opaque; it is owned by the catalog.
type Resource struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OwnerID        uuid.UUID    `json:"owner_id" db:"owner_id"`
	Kind           ResourceKind `json:"kind" db:"kind"`
	PrimaryText    string       `json:"primary_text" db:"primary_text"`
	SecondaryText  string       `json:"secondary_text" db:"secondary_text"`
	PrimaryAudio   *string      `json:"primary_audio,omitempty" db:"primary_audio"`
	SecondaryAudio *string      `json:"secondary_audio,omitempty" db:"secondary_audio"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// List is the read-only view of a resource list used when an execution starts.
// ResourceIDs are in display order.
type List struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	Name        string      `json:"name"`
	Tags        []string    `json:"tags"`
	ResourceIDs []uuid.UUID `json:"resource_ids"`
}
