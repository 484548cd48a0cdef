package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
)

type CredentialRepository interface {
	// RecordIssuance inserts the derived-key marker and the credential in
	// one transaction. Returns domain.ErrCredentialAlreadyIssued when the
	// derived key already holds a marker.
	RecordIssuance(ctx context.Context, pollID uuid.UUID, derivedKey string, cred *domain.Credential) error
	GetByToken(ctx context.Context, token string) (*domain.Credential, error)
	CountIssued(ctx context.Context, pollID uuid.UUID) (int, error)
	CountConsumed(ctx context.Context, pollID uuid.UUID) (int, error)
}

// IssuerService converts (poll, eligible identity) into a single-use,
// unlinkable voting credential. The identity and the returned token
// co-occur only in the duration of the call.
type IssuerService interface {
	RequestToken(ctx context.Context, pollID uuid.UUID, identity string) (string, error)
}
