package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

type registryService struct {
	pollRepo   ports.PollRepository
	audit      ports.AuditService
	aggregator ports.AggregatorService
}

// NewRegistryService wires the poll registry. The aggregator is invoked
// when a poll closes so a final report is produced without a separate
// trigger; it may be nil in tests that only exercise the state machine.
func NewRegistryService(pollRepo ports.PollRepository, audit ports.AuditService, aggregator ports.AggregatorService) ports.RegistryService {
	return &registryService{
		pollRepo:   pollRepo,
		audit:      audit,
		aggregator: aggregator,
	}
}

func (s *registryService) Create(ctx context.Context, actor string, input ports.CreatePollInput) (*domain.Poll, error) {
	pollID := uuid.New()
	now := time.Now().UTC()

	poll := &domain.Poll{
		ID:              pollID,
		Title:           input.Title,
		Description:     input.Description,
		Type:            input.Type,
		Anonymity:       input.Anonymity,
		Visibility:      input.Visibility,
		State:           domain.StateDraft,
		StartsAt:        input.StartsAt,
		EndsAt:          input.EndsAt,
		QuorumThreshold: input.QuorumThreshold,
		EligibleCount:   input.EligibleCount,
		RatingMin:       input.RatingMin,
		RatingMax:       input.RatingMax,
		CreatedAt:       now,
	}
	if poll.Anonymity == "" {
		poll.Anonymity = domain.AnonymityFull
	}
	if poll.Visibility == "" {
		poll.Visibility = domain.VisibilityHiddenUntilClose
	}

	for i, label := range input.Options {
		poll.Options = append(poll.Options, domain.PollOption{
			ID:       uuid.New(),
			PollID:   pollID,
			Label:    label,
			Position: i,
		})
	}

	if err := poll.Validate(); err != nil {
		return nil, err
	}

	// Per-poll issuance secret, discarded at close.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate issuance secret: %w", err)
	}

	if err := s.pollRepo.Save(ctx, poll, secret); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		Actor:  actor,
		Action: domain.ActionPollCreated,
		PollID: pollID,
	})

	return poll, nil
}

func (s *registryService) Get(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	return s.pollRepo.GetByID(ctx, id)
}

func (s *registryService) List(ctx context.Context, limit, offset int) ([]*domain.Poll, error) {
	return s.pollRepo.List(ctx, limit, offset)
}

func (s *registryService) Transition(ctx context.Context, actor string, id uuid.UUID, target domain.PollState) error {
	poll, err := s.pollRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !domain.ValidTransition(poll.State, target) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStateTransition, poll.State, target)
	}

	// Resolution is owned by the aggregator: a poll only becomes resolved
	// together with its stored report.
	if target == domain.StateResolved {
		if s.aggregator == nil {
			return fmt.Errorf("%w: resolution requires aggregation", domain.ErrInvalidStateTransition)
		}
		_, err := s.aggregator.Aggregate(ctx, id)
		return err
	}

	ok, err := s.pollRepo.UpdateState(ctx, id, poll.State, target)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with a concurrent transition.
		return fmt.Errorf("%w: poll state changed concurrently", domain.ErrInvalidStateTransition)
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		Actor:  actor,
		Action: transitionAction(target),
		PollID: id,
	})

	if target == domain.StateClosed {
		s.afterClose(ctx, id)
	}

	return nil
}

func (s *registryService) Close(ctx context.Context, actor string, id uuid.UUID) error {
	poll, err := s.pollRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// A draft poll whose window already opened closes in one call.
	if poll.State == domain.StateDraft && poll.EffectiveState(time.Now().UTC()) != domain.StateDraft {
		if err := s.Transition(ctx, actor, id, domain.StateActive); err != nil {
			return err
		}
	}

	return s.Transition(ctx, actor, id, domain.StateClosed)
}

// Sweep advances polls whose stored state lags the wall clock: drafts past
// their start time become active, active polls past their end time are
// closed and aggregated. Vote acceptance never depends on the sweep; the
// submit transaction re-checks the end time itself.
func (s *registryService) Sweep(ctx context.Context, now time.Time) error {
	due, err := s.pollRepo.DueForSweep(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list polls due for sweep: %w", err)
	}

	for _, poll := range due {
		if poll.State == domain.StateDraft && !now.Before(poll.StartsAt) {
			if err := s.Transition(ctx, domain.SystemActor, poll.ID, domain.StateActive); err != nil {
				log.Printf("sweep: activate poll %s: %v", poll.ID, err)
				continue
			}
			poll.State = domain.StateActive
		}
		if poll.State == domain.StateActive && !now.Before(poll.EndsAt) {
			if err := s.Transition(ctx, domain.SystemActor, poll.ID, domain.StateClosed); err != nil {
				log.Printf("sweep: close poll %s: %v", poll.ID, err)
			}
		}
	}

	return nil
}

func (s *registryService) afterClose(ctx context.Context, id uuid.UUID) {
	if err := s.pollRepo.ClearIssuanceSecret(ctx, id); err != nil {
		log.Printf("failed to discard issuance secret for poll %s: %v", id, err)
	}
	if s.aggregator == nil {
		return
	}
	if _, err := s.aggregator.Aggregate(ctx, id); err != nil {
		log.Printf("failed to aggregate poll %s on close: %v", id, err)
	}
}

func transitionAction(target domain.PollState) domain.AuditAction {
	switch target {
	case domain.StateActive:
		return domain.ActionPollActivated
	case domain.StateClosed:
		return domain.ActionPollClosed
	case domain.StateResolved:
		return domain.ActionPollResolved
	}
	return domain.ActionPollCreated
}
