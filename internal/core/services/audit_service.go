package services

import (
	"context"
	"log"
	"time"

	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type auditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) ports.AuditService {
	return &auditService{repo: repo}
}

// Record appends an entry on a best-effort basis. Audit writes must not
// turn a successful vote into a failure, so append errors are logged and
// surfaced by the ledger reconciliation check instead.
func (s *auditService) Record(ctx context.Context, entry *domain.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		log.Printf("audit append failed for %s on poll %s: %v", entry.Action, entry.PollID, err)
	}
}

func (s *auditService) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	return s.repo.Query(ctx, filter)
}
