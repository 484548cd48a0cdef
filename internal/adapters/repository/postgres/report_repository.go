package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type reportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) ports.ReportRepository {
	return &reportRepository{db: db}
}

// Save appends; regeneration produces a new row and GetLatest serves the
// most recent one, so earlier reports stay available for review.
func (r *reportRepository) Save(ctx context.Context, report *domain.DecisionReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO decision_reports (id, poll_id, generated_at, report)
		VALUES ($1, $2, $3, $4)
	`, report.ID, report.PollID, report.GeneratedAt, body)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *reportRepository) GetLatest(ctx context.Context, pollID uuid.UUID) (*domain.DecisionReport, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT report FROM decision_reports
		WHERE poll_id = $1
		ORDER BY generated_at DESC, id DESC
		LIMIT 1
	`, pollID).Scan(&body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPollNotResolved
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report domain.DecisionReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}
