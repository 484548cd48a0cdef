package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) ports.CredentialRepository {
	return &credentialRepository{db: db}
}

// RecordIssuance writes the derived-key marker and the credential in one
// transaction. The two rows share no common column, so the persisted state
// never links an identity derivation to a token.
func (r *credentialRepository) RecordIssuance(ctx context.Context, pollID uuid.UUID, derivedKey string, cred *domain.Credential) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO credential_issuance (poll_id, derived_key, issued_at) VALUES ($1, $2, $3)`,
		pollID, derivedKey, cred.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCredentialAlreadyIssued
		}
		return fmt.Errorf("failed to record issuance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO voting_credentials (token, poll_id, issued_at, consumed) VALUES ($1, $2, $3, FALSE)`,
		cred.Token, pollID, cred.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *credentialRepository) GetByToken(ctx context.Context, token string) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.db.QueryRowContext(ctx,
		`SELECT token, poll_id, issued_at, consumed, consumed_at FROM voting_credentials WHERE token = $1`,
		token,
	).Scan(&cred.Token, &cred.PollID, &cred.IssuedAt, &cred.Consumed, &cred.ConsumedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

func (r *credentialRepository) CountIssued(ctx context.Context, pollID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voting_credentials WHERE poll_id = $1`, pollID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count issued credentials: %w", err)
	}
	return count, nil
}

func (r *credentialRepository) CountConsumed(ctx context.Context, pollID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voting_credentials WHERE poll_id = $1 AND consumed`, pollID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count consumed credentials: %w", err)
	}
	return count, nil
}
