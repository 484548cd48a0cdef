package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
)

type VoteRepository interface {
	// ConsumeAndInsert re-checks poll state, marks the credential consumed
	// and inserts the vote in a single transaction. Returns
	// domain.ErrTokenAlreadyConsumed when a concurrent submission won the
	// race, domain.ErrTokenNotFound for unknown or cross-poll tokens and
	// domain.ErrPollNotActive when the poll ended before the transaction.
	ConsumeAndInsert(ctx context.Context, vote *domain.Vote) error
	GetByPoll(ctx context.Context, pollID uuid.UUID) ([]*domain.Vote, error)
	CountByPoll(ctx context.Context, pollID uuid.UUID) (int, error)
}

// LedgerService accepts votes keyed by token and enforces at most one vote
// per credential.
type LedgerService interface {
	SubmitVote(ctx context.Context, token string, pollID uuid.UUID, payload domain.VotePayload) (uuid.UUID, error)
}
