package domain

import (
	"time"

	"github.com/google/uuid"
)

// Credential is a single-use bearer token authorizing one vote in one poll.
// It carries no identity reference; the issuance record that prevents
// double-issuance lives in a separate table keyed by a one-way derivation
// of the identity.
type Credential struct {
	Token      string     `json:"token"`
	PollID     uuid.UUID  `json:"poll_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// VotePayload is the tagged variant for all poll types. Which fields are
// meaningful depends on the poll's type; ValidatePayload enforces the shape.
type VotePayload struct {
	OptionID    *uuid.UUID        `json:"option_id,omitempty"`   // single_choice
	OptionIDs   []uuid.UUID       `json:"option_ids,omitempty"`  // multi_choice
	Rating      *int              `json:"rating,omitempty"`      // rating_scale
	Response    string            `json:"response,omitempty"`    // open_response
	Ranking     []uuid.UUID       `json:"ranking,omitempty"`     // ranking
	Allocations map[uuid.UUID]int `json:"allocations,omitempty"` // budget_percentage
}

type Vote struct {
	ID           uuid.UUID   `json:"id"`
	PollID       uuid.UUID   `json:"poll_id"`
	Token        string      `json:"-"`
	Payload      VotePayload `json:"payload"`
	IntegrityTag string      `json:"integrity_tag"`
	SubmittedAt  time.Time   `json:"submitted_at"`
}
