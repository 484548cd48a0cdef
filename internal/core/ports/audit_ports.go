package ports

import (
	"context"

	"github.com/govquorum/anonpoll/internal/core/domain"
)

// AuditRepository is append-only; no update or delete is exposed.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
	CountByAction(ctx context.Context, filter domain.AuditFilter) (int, error)
}

type AuditService interface {
	Record(ctx context.Context, entry *domain.AuditEntry)
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}
