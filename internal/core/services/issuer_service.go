package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
	"github.com/govquorum/anonpoll/internal/metrics"
)

type issuerService struct {
	pollRepo ports.PollRepository
	credRepo ports.CredentialRepository
	audit    ports.AuditService
}

func NewIssuerService(pollRepo ports.PollRepository, credRepo ports.CredentialRepository, audit ports.AuditService) ports.IssuerService {
	return &issuerService{
		pollRepo: pollRepo,
		credRepo: credRepo,
		audit:    audit,
	}
}

// RequestToken mints a fresh unguessable credential for (poll, identity).
// The identity is reduced to a one-way poll-scoped derivation before it
// touches storage; the token and the identity co-occur only in the return
// value of this call.
func (s *issuerService) RequestToken(ctx context.Context, pollID uuid.UUID, identity string) (string, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return "", err
	}

	if poll.EffectiveState(time.Now().UTC()) != domain.StateActive {
		return "", domain.ErrPollNotActive
	}

	secret, err := s.pollRepo.GetIssuanceSecret(ctx, pollID)
	if err != nil {
		return "", err
	}
	if len(secret) == 0 {
		// Secret already discarded, issuance window is over.
		return "", domain.ErrPollNotActive
	}

	derivedKey := domain.DeriveIssuanceKey(secret, pollID, identity)

	token, err := mintToken()
	if err != nil {
		return "", err
	}

	cred := &domain.Credential{
		Token:    token,
		PollID:   pollID,
		IssuedAt: time.Now().UTC(),
	}

	if err := s.credRepo.RecordIssuance(ctx, pollID, derivedKey, cred); err != nil {
		return "", err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		Actor:  identity,
		Action: domain.ActionTokenIssued,
		PollID: pollID,
	})
	metrics.TokensIssued.Inc()

	return token, nil
}

// mintToken returns 256 bits of entropy, URL-safe.
func mintToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate voting token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
