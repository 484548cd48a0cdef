package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type voteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) ports.VoteRepository {
	return &voteRepository{db: db}
}

// ConsumeAndInsert is the one atomic write of the subsystem: inside a
// single transaction it re-checks the poll window, flips the credential's
// consumed flag with a compare-and-swap and inserts the vote. Two racers
// on the same token both reach the UPDATE; exactly one sees a row change.
// The UNIQUE constraint on votes(token) is the backstop.
func (r *voteRepository) ConsumeAndInsert(ctx context.Context, vote *domain.Vote) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var poll domain.Poll
	err = tx.QueryRowContext(ctx,
		`SELECT id, state, starts_at, ends_at FROM polls WHERE id = $1`,
		vote.PollID,
	).Scan(&poll.ID, &poll.State, &poll.StartsAt, &poll.EndsAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrPollNotFound
		}
		return fmt.Errorf("failed to re-check poll state: %w", err)
	}
	if poll.EffectiveState(time.Now().UTC()) != domain.StateActive {
		return domain.ErrPollNotActive
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE voting_credentials
		SET consumed = TRUE, consumed_at = $1
		WHERE token = $2 AND poll_id = $3 AND NOT consumed
	`, vote.SubmittedAt, vote.Token, vote.PollID)
	if err != nil {
		if isTxConflict(err) {
			return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
		}
		return fmt.Errorf("failed to consume credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM voting_credentials WHERE token = $1 AND poll_id = $2)`,
			vote.Token, vote.PollID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up credential: %w", err)
		}
		if exists {
			return domain.ErrTokenAlreadyConsumed
		}
		return domain.ErrTokenNotFound
	}

	payload, err := json.Marshal(vote.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode vote payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (id, poll_id, token, payload, integrity_tag, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vote.ID, vote.PollID, vote.Token, payload, vote.IntegrityTag, vote.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTokenAlreadyConsumed
		}
		if isTxConflict(err) {
			return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isTxConflict(err) {
			return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *voteRepository) GetByPoll(ctx context.Context, pollID uuid.UUID) ([]*domain.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, poll_id, token, payload, integrity_tag, submitted_at
		FROM votes
		WHERE poll_id = $1
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}
	defer rows.Close()

	var votes []*domain.Vote
	for rows.Next() {
		var vote domain.Vote
		var payload []byte
		if err := rows.Scan(&vote.ID, &vote.PollID, &vote.Token, &payload, &vote.IntegrityTag, &vote.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		if err := json.Unmarshal(payload, &vote.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode vote payload: %w", err)
		}
		votes = append(votes, &vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

func (r *voteRepository) CountByPoll(ctx context.Context, pollID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE poll_id = $1`, pollID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}
