package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	ActionPollCreated     AuditAction = "poll_created"
	ActionPollActivated   AuditAction = "poll_activated"
	ActionPollClosed      AuditAction = "poll_closed"
	ActionPollResolved    AuditAction = "poll_resolved"
	ActionTokenIssued     AuditAction = "token_issued"
	ActionVoteAccepted    AuditAction = "vote_accepted"
	ActionVoteRejected    AuditAction = "vote_rejected"
	ActionResultsComputed AuditAction = "results_computed"
)

// SystemActor is recorded for events that must not carry a caller
// identity: vote acceptance and rejection are anonymous by construction.
const SystemActor = "system"

// AuditEntry is append-only and never references vote payload content.
type AuditEntry struct {
	ID        int64       `json:"id"`
	Actor     string      `json:"actor"`
	Action    AuditAction `json:"action"`
	PollID    uuid.UUID   `json:"poll_id"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type AuditFilter struct {
	PollID *uuid.UUID
	Action *AuditAction
	From   *time.Time
	To     *time.Time
}
