package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type pollRepository struct {
	db *sql.DB
}

func NewPollRepository(db *sql.DB) ports.PollRepository {
	return &pollRepository{db: db}
}

func (r *pollRepository) Save(ctx context.Context, poll *domain.Poll, secret []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queryPoll := `
		INSERT INTO polls (id, title, description, poll_type, anonymity, visibility, state,
			starts_at, ends_at, quorum_threshold, eligible_count, rating_min, rating_max,
			issuance_secret, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, queryPoll,
		poll.ID, poll.Title, poll.Description, poll.Type, poll.Anonymity, poll.Visibility,
		poll.State, poll.StartsAt, poll.EndsAt, poll.QuorumThreshold, poll.EligibleCount,
		poll.RatingMin, poll.RatingMax, secret, poll.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}

	queryOption := `
		INSERT INTO poll_options (id, poll_id, label, position)
		VALUES ($1, $2, $3, $4)
	`
	stmt, err := tx.PrepareContext(ctx, queryOption)
	if err != nil {
		return fmt.Errorf("failed to prepare option statement: %w", err)
	}
	defer stmt.Close()

	for _, opt := range poll.Options {
		if _, err = stmt.ExecContext(ctx, opt.ID, opt.PollID, opt.Label, opt.Position); err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *pollRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	query := `
		SELECT id, title, description, poll_type, anonymity, visibility, state,
			starts_at, ends_at, quorum_threshold, eligible_count, rating_min, rating_max, created_at
		FROM polls
		WHERE id = $1
	`

	var poll domain.Poll
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&poll.ID, &poll.Title, &poll.Description, &poll.Type, &poll.Anonymity, &poll.Visibility,
		&poll.State, &poll.StartsAt, &poll.EndsAt, &poll.QuorumThreshold, &poll.EligibleCount,
		&poll.RatingMin, &poll.RatingMax, &poll.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	options, err := r.fetchOptions(ctx, poll.ID)
	if err != nil {
		return nil, err
	}
	poll.Options = options

	return &poll, nil
}

func (r *pollRepository) List(ctx context.Context, limit, offset int) ([]*domain.Poll, error) {
	query := `
		SELECT id, title, description, poll_type, anonymity, visibility, state,
			starts_at, ends_at, quorum_threshold, eligible_count, rating_min, rating_max, created_at
		FROM polls
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	return r.scanPolls(ctx, rows)
}

func (r *pollRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.PollState) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE polls SET state = $1 WHERE id = $2 AND state = $3`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update poll state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

func (r *pollRepository) GetIssuanceSecret(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var secret []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT issuance_secret FROM polls WHERE id = $1`, id,
	).Scan(&secret)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get issuance secret: %w", err)
	}
	return secret, nil
}

func (r *pollRepository) ClearIssuanceSecret(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE polls SET issuance_secret = NULL WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to clear issuance secret: %w", err)
	}
	return nil
}

func (r *pollRepository) DueForSweep(ctx context.Context, now time.Time) ([]*domain.Poll, error) {
	query := `
		SELECT id, title, description, poll_type, anonymity, visibility, state,
			starts_at, ends_at, quorum_threshold, eligible_count, rating_min, rating_max, created_at
		FROM polls
		WHERE (state = 'draft' AND starts_at <= $1)
		   OR (state = 'active' AND ends_at <= $1)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls due for sweep: %w", err)
	}
	defer rows.Close()

	return r.scanPolls(ctx, rows)
}

func (r *pollRepository) scanPolls(ctx context.Context, rows *sql.Rows) ([]*domain.Poll, error) {
	var polls []*domain.Poll
	for rows.Next() {
		var poll domain.Poll
		if err := rows.Scan(
			&poll.ID, &poll.Title, &poll.Description, &poll.Type, &poll.Anonymity, &poll.Visibility,
			&poll.State, &poll.StartsAt, &poll.EndsAt, &poll.QuorumThreshold, &poll.EligibleCount,
			&poll.RatingMin, &poll.RatingMax, &poll.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}

		options, err := r.fetchOptions(ctx, poll.ID)
		if err != nil {
			return nil, err
		}
		poll.Options = options

		polls = append(polls, &poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}
	return polls, nil
}

func (r *pollRepository) fetchOptions(ctx context.Context, pollID uuid.UUID) ([]domain.PollOption, error) {
	query := `
		SELECT id, poll_id, label, position
		FROM poll_options
		WHERE poll_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll options: %w", err)
	}
	defer rows.Close()

	var options []domain.PollOption
	for rows.Next() {
		var opt domain.PollOption
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Label, &opt.Position); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}
