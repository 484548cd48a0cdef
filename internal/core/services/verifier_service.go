package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type verifierService struct {
	pollRepo  ports.PollRepository
	credRepo  ports.CredentialRepository
	voteRepo  ports.VoteRepository
	auditRepo ports.AuditRepository
}

func NewVerifierService(pollRepo ports.PollRepository, credRepo ports.CredentialRepository, voteRepo ports.VoteRepository, auditRepo ports.AuditRepository) ports.VerifierService {
	return &verifierService{
		pollRepo:  pollRepo,
		credRepo:  credRepo,
		voteRepo:  voteRepo,
		auditRepo: auditRepo,
	}
}

// VerifyToken checks that a token was issued for this poll and is still
// spendable. A token issued for a different poll is reported as not found,
// never as belonging elsewhere.
func (s *verifierService) VerifyToken(ctx context.Context, token string, pollID uuid.UUID) (*domain.Credential, error) {
	cred, err := s.credRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if cred.PollID != pollID {
		return nil, domain.ErrTokenNotFound
	}
	if cred.Consumed {
		return nil, domain.ErrTokenAlreadyConsumed
	}
	return cred, nil
}

// VerifyLedger reproduces the tamper-evidence check from the persisted,
// non-identity-bearing tables alone: consumed credentials must match
// recorded votes one to one, every vote's token must have been issued for
// this poll, every integrity tag must recompute, and the audit trail must
// reconcile with both counts.
func (s *verifierService) VerifyLedger(ctx context.Context, pollID uuid.UUID) (*domain.IntegrityReport, error) {
	if _, err := s.pollRepo.GetByID(ctx, pollID); err != nil {
		return nil, err
	}

	issued, err := s.credRepo.CountIssued(ctx, pollID)
	if err != nil {
		return nil, err
	}
	consumed, err := s.credRepo.CountConsumed(ctx, pollID)
	if err != nil {
		return nil, err
	}

	votes, err := s.voteRepo.GetByPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	report := &domain.IntegrityReport{
		PollID:              pollID,
		CredentialsIssued:   issued,
		CredentialsConsumed: consumed,
		VotesRecorded:       len(votes),
		CheckedAt:           time.Now().UTC(),
	}

	for _, vote := range votes {
		cred, err := s.credRepo.GetByToken(ctx, vote.Token)
		if err != nil || cred.PollID != pollID {
			report.CrossPollVotes++
			continue
		}
		if !domain.VerifyIntegrityTag(vote.IntegrityTag, vote.Token, vote.PollID, vote.Payload) {
			report.TagMismatches++
		}
	}

	issuedAction := domain.ActionTokenIssued
	acceptedAction := domain.ActionVoteAccepted
	report.AuditIssuedCount, err = s.auditRepo.CountByAction(ctx, domain.AuditFilter{PollID: &pollID, Action: &issuedAction})
	if err != nil {
		return nil, err
	}
	report.AuditAcceptedCount, err = s.auditRepo.CountByAction(ctx, domain.AuditFilter{PollID: &pollID, Action: &acceptedAction})
	if err != nil {
		return nil, err
	}

	report.Consistent = report.CredentialsConsumed == report.VotesRecorded &&
		report.CrossPollVotes == 0 &&
		report.TagMismatches == 0 &&
		report.AuditIssuedCount == report.CredentialsIssued &&
		report.AuditAcceptedCount == report.VotesRecorded

	return report, nil
}
