package services

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
	"github.com/govquorum/anonpoll/internal/metrics"
)

// submitAttempts bounds optimistic-concurrency retries for the
// consume-and-insert transaction. Only storage-level conflicts are
// retried; every domain rejection is final.
const submitAttempts = 3

type ledgerService struct {
	pollRepo ports.PollRepository
	voteRepo ports.VoteRepository
	verifier ports.VerifierService
	audit    ports.AuditService
}

func NewLedgerService(pollRepo ports.PollRepository, voteRepo ports.VoteRepository, verifier ports.VerifierService, audit ports.AuditService) ports.LedgerService {
	return &ledgerService{
		pollRepo: pollRepo,
		voteRepo: voteRepo,
		verifier: verifier,
		audit:    audit,
	}
}

func (s *ledgerService) SubmitVote(ctx context.Context, token string, pollID uuid.UUID, payload domain.VotePayload) (uuid.UUID, error) {
	voteID, err := s.submit(ctx, token, pollID, payload)
	if err != nil {
		reason := rejectionReason(err)
		if reason != "" {
			s.audit.Record(ctx, &domain.AuditEntry{
				Actor:  domain.SystemActor,
				Action: domain.ActionVoteRejected,
				PollID: pollID,
				Reason: reason,
			})
			metrics.VotesRejected.WithLabelValues(reason).Inc()
		}
		return uuid.Nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		Actor:  domain.SystemActor,
		Action: domain.ActionVoteAccepted,
		PollID: pollID,
	})
	metrics.VotesAccepted.Inc()

	return voteID, nil
}

func (s *ledgerService) submit(ctx context.Context, token string, pollID uuid.UUID, payload domain.VotePayload) (uuid.UUID, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return uuid.Nil, err
	}

	if poll.EffectiveState(time.Now().UTC()) != domain.StateActive {
		return uuid.Nil, domain.ErrPollNotActive
	}

	if _, err := s.verifier.VerifyToken(ctx, token, pollID); err != nil {
		return uuid.Nil, err
	}

	// Payload validation happens before the credential is touched, so a
	// malformed submission never burns the voter's one token.
	if err := poll.ValidatePayload(payload); err != nil {
		return uuid.Nil, err
	}

	tag, err := domain.ComputeIntegrityTag(token, pollID, payload)
	if err != nil {
		return uuid.Nil, err
	}

	vote := &domain.Vote{
		ID:           uuid.New(),
		PollID:       pollID,
		Token:        token,
		Payload:      payload,
		IntegrityTag: tag,
		SubmittedAt:  time.Now().UTC(),
	}

	start := time.Now()
	err = retry.Do(
		func() error {
			return s.voteRepo.ConsumeAndInsert(ctx, vote)
		},
		retry.Context(ctx),
		retry.Attempts(submitAttempts),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrTxConflict)
		}),
		retry.LastErrorOnly(true),
	)
	metrics.SubmitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return uuid.Nil, err
	}

	return vote.ID, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenAlreadyConsumed):
		return "token_already_consumed"
	case errors.Is(err, domain.ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, domain.ErrPollNotActive):
		return "poll_not_active"
	case errors.Is(err, domain.ErrInvalidVotePayload):
		return "invalid_payload"
	case errors.Is(err, domain.ErrPollNotFound):
		return ""
	}
	return "storage_failure"
}
