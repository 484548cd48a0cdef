package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

// auditRepository only ever appends and reads; no UPDATE or DELETE
// statement exists against audit_log anywhere in this codebase.
type auditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) ports.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO audit_log (actor, action, poll_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, entry.Actor, entry.Action, entry.PollID, entry.Reason, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	query, args := buildAuditQuery(
		`SELECT id, actor, action, poll_id, reason, created_at FROM audit_log`,
		filter,
	)
	// Entries per poll are ordered for reconstruction; id breaks ties
	// within the same timestamp.
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.PollID, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

func (r *auditRepository) CountByAction(ctx context.Context, filter domain.AuditFilter) (int, error) {
	query, args := buildAuditQuery(`SELECT COUNT(*) FROM audit_log`, filter)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

func buildAuditQuery(base string, filter domain.AuditFilter) (string, []any) {
	var clauses []string
	var args []any

	addClause := func(expr string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}

	if filter.PollID != nil {
		addClause("poll_id = $%d", *filter.PollID)
	}
	if filter.Action != nil {
		addClause("action = $%d", *filter.Action)
	}
	if filter.From != nil {
		addClause("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		addClause("created_at <= $%d", *filter.To)
	}

	if len(clauses) > 0 {
		base += " WHERE " + strings.Join(clauses, " AND ")
	}
	return base, args
}
