package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
)

type PollRepository interface {
	Save(ctx context.Context, poll *domain.Poll, secret []byte) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Poll, error)
	// UpdateState applies from->to atomically; reports false when the poll
	// was no longer in the expected state.
	UpdateState(ctx context.Context, id uuid.UUID, from, to domain.PollState) (bool, error)
	GetIssuanceSecret(ctx context.Context, id uuid.UUID) ([]byte, error)
	// ClearIssuanceSecret discards the per-poll derivation key. Called on
	// close; irreversible.
	ClearIssuanceSecret(ctx context.Context, id uuid.UUID) error
	// DueForSweep returns polls whose stored state lags the wall clock.
	DueForSweep(ctx context.Context, now time.Time) ([]*domain.Poll, error)
}

type CreatePollInput struct {
	Title           string
	Description     string
	Type            domain.PollType
	Anonymity       domain.AnonymityLevel
	Visibility      domain.VisibilityPolicy
	StartsAt        time.Time
	EndsAt          time.Time
	QuorumThreshold int
	EligibleCount   int
	RatingMin       int
	RatingMax       int
	Options         []string
}

// RegistryService owns poll definitions and is the only component allowed
// to mutate poll state.
type RegistryService interface {
	Create(ctx context.Context, actor string, input CreatePollInput) (*domain.Poll, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Poll, error)
	Transition(ctx context.Context, actor string, id uuid.UUID, target domain.PollState) error
	Close(ctx context.Context, actor string, id uuid.UUID) error
	// Sweep advances polls whose start or end time has passed.
	Sweep(ctx context.Context, now time.Time) error
}
