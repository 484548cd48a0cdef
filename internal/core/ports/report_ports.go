package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
)

type ReportRepository interface {
	Save(ctx context.Context, report *domain.DecisionReport) error
	// GetLatest returns the most recent report for the poll, or
	// domain.ErrPollNotResolved when none exists.
	GetLatest(ctx context.Context, pollID uuid.UUID) (*domain.DecisionReport, error)
}

// AggregatorService computes tallies and consensus metrics once a poll
// closes, without ever re-associating a vote with an identity.
type AggregatorService interface {
	// Aggregate is idempotent: on an already resolved poll it returns the
	// stored report.
	Aggregate(ctx context.Context, pollID uuid.UUID) (*domain.DecisionReport, error)
	// Regenerate recomputes explicitly and appends an audit entry.
	Regenerate(ctx context.Context, actor string, pollID uuid.UUID) (*domain.DecisionReport, error)
	GetReport(ctx context.Context, pollID uuid.UUID) (*domain.DecisionReport, error)
}

// VerifierService validates credentials on the write path and reproduces
// the tamper-evidence check on demand.
type VerifierService interface {
	VerifyToken(ctx context.Context, token string, pollID uuid.UUID) (*domain.Credential, error)
	VerifyLedger(ctx context.Context, pollID uuid.UUID) (*domain.IntegrityReport, error)
}
