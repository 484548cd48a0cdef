package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

// memStore backs the in-memory repositories used by the service tests. A
// single mutex gives the same atomicity the Postgres adapters get from
// transactions and unique constraints.
type memStore struct {
	mu       sync.Mutex
	polls    map[uuid.UUID]*domain.Poll
	secrets  map[uuid.UUID][]byte
	issuance map[uuid.UUID]map[string]bool
	creds    map[string]*domain.Credential
	votes    []*domain.Vote
	voted    map[string]bool
	audit    []*domain.AuditEntry
	reports  map[uuid.UUID][]*domain.DecisionReport
}

func newMemStore() *memStore {
	return &memStore{
		polls:    make(map[uuid.UUID]*domain.Poll),
		secrets:  make(map[uuid.UUID][]byte),
		issuance: make(map[uuid.UUID]map[string]bool),
		creds:    make(map[string]*domain.Credential),
		voted:    make(map[string]bool),
		reports:  make(map[uuid.UUID][]*domain.DecisionReport),
	}
}

type memPollRepo struct{ store *memStore }

func (r *memPollRepo) Save(_ context.Context, poll *domain.Poll, secret []byte) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.polls[poll.ID] = poll
	r.store.secrets[poll.ID] = secret
	return nil
}

func (r *memPollRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Poll, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	poll, ok := r.store.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	copied := *poll
	return &copied, nil
}

func (r *memPollRepo) List(_ context.Context, limit, offset int) ([]*domain.Poll, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var polls []*domain.Poll
	for _, poll := range r.store.polls {
		copied := *poll
		polls = append(polls, &copied)
	}
	return polls, nil
}

func (r *memPollRepo) UpdateState(_ context.Context, id uuid.UUID, from, to domain.PollState) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	poll, ok := r.store.polls[id]
	if !ok || poll.State != from {
		return false, nil
	}
	poll.State = to
	return true, nil
}

func (r *memPollRepo) GetIssuanceSecret(_ context.Context, id uuid.UUID) ([]byte, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.polls[id]; !ok {
		return nil, domain.ErrPollNotFound
	}
	return r.store.secrets[id], nil
}

func (r *memPollRepo) ClearIssuanceSecret(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.secrets[id] = nil
	return nil
}

func (r *memPollRepo) DueForSweep(_ context.Context, now time.Time) ([]*domain.Poll, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var due []*domain.Poll
	for _, poll := range r.store.polls {
		if (poll.State == domain.StateDraft && !now.Before(poll.StartsAt)) ||
			(poll.State == domain.StateActive && !now.Before(poll.EndsAt)) {
			copied := *poll
			due = append(due, &copied)
		}
	}
	return due, nil
}

type memCredentialRepo struct{ store *memStore }

func (r *memCredentialRepo) RecordIssuance(_ context.Context, pollID uuid.UUID, derivedKey string, cred *domain.Credential) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	keys, ok := r.store.issuance[pollID]
	if !ok {
		keys = make(map[string]bool)
		r.store.issuance[pollID] = keys
	}
	if keys[derivedKey] {
		return domain.ErrCredentialAlreadyIssued
	}
	keys[derivedKey] = true
	copied := *cred
	r.store.creds[cred.Token] = &copied
	return nil
}

func (r *memCredentialRepo) GetByToken(_ context.Context, token string) (*domain.Credential, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cred, ok := r.store.creds[token]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	copied := *cred
	return &copied, nil
}

func (r *memCredentialRepo) CountIssued(_ context.Context, pollID uuid.UUID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, cred := range r.store.creds {
		if cred.PollID == pollID {
			count++
		}
	}
	return count, nil
}

func (r *memCredentialRepo) CountConsumed(_ context.Context, pollID uuid.UUID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, cred := range r.store.creds {
		if cred.PollID == pollID && cred.Consumed {
			count++
		}
	}
	return count, nil
}

type memVoteRepo struct{ store *memStore }

func (r *memVoteRepo) ConsumeAndInsert(_ context.Context, vote *domain.Vote) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	poll, ok := r.store.polls[vote.PollID]
	if !ok {
		return domain.ErrPollNotFound
	}
	if poll.EffectiveState(time.Now().UTC()) != domain.StateActive {
		return domain.ErrPollNotActive
	}

	cred, ok := r.store.creds[vote.Token]
	if !ok || cred.PollID != vote.PollID {
		return domain.ErrTokenNotFound
	}
	if cred.Consumed || r.store.voted[vote.Token] {
		return domain.ErrTokenAlreadyConsumed
	}

	now := vote.SubmittedAt
	cred.Consumed = true
	cred.ConsumedAt = &now
	r.store.voted[vote.Token] = true
	copied := *vote
	r.store.votes = append(r.store.votes, &copied)
	return nil
}

func (r *memVoteRepo) GetByPoll(_ context.Context, pollID uuid.UUID) ([]*domain.Vote, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var votes []*domain.Vote
	for _, vote := range r.store.votes {
		if vote.PollID == pollID {
			copied := *vote
			votes = append(votes, &copied)
		}
	}
	return votes, nil
}

func (r *memVoteRepo) CountByPoll(_ context.Context, pollID uuid.UUID) (int, error) {
	votes, _ := r.GetByPoll(context.Background(), pollID)
	return len(votes), nil
}

type memAuditRepo struct{ store *memStore }

func (r *memAuditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *entry
	copied.ID = int64(len(r.store.audit) + 1)
	r.store.audit = append(r.store.audit, &copied)
	return nil
}

func (r *memAuditRepo) Query(_ context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var entries []*domain.AuditEntry
	for _, entry := range r.store.audit {
		if matchesFilter(entry, filter) {
			copied := *entry
			entries = append(entries, &copied)
		}
	}
	return entries, nil
}

func (r *memAuditRepo) CountByAction(ctx context.Context, filter domain.AuditFilter) (int, error) {
	entries, err := r.Query(ctx, filter)
	return len(entries), err
}

func matchesFilter(entry *domain.AuditEntry, filter domain.AuditFilter) bool {
	if filter.PollID != nil && entry.PollID != *filter.PollID {
		return false
	}
	if filter.Action != nil && entry.Action != *filter.Action {
		return false
	}
	if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && entry.CreatedAt.After(*filter.To) {
		return false
	}
	return true
}

type memReportRepo struct{ store *memStore }

func (r *memReportRepo) Save(_ context.Context, report *domain.DecisionReport) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *report
	r.store.reports[report.PollID] = append(r.store.reports[report.PollID], &copied)
	return nil
}

func (r *memReportRepo) GetLatest(_ context.Context, pollID uuid.UUID) (*domain.DecisionReport, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	reports := r.store.reports[pollID]
	if len(reports) == 0 {
		return nil, domain.ErrPollNotResolved
	}
	copied := *reports[len(reports)-1]
	return &copied, nil
}

// testEnv wires every service over a shared memStore.
type testEnv struct {
	store      *memStore
	pollRepo   ports.PollRepository
	credRepo   ports.CredentialRepository
	voteRepo   ports.VoteRepository
	auditRepo  ports.AuditRepository
	reportRepo ports.ReportRepository

	audit      ports.AuditService
	verifier   ports.VerifierService
	aggregator ports.AggregatorService
	registry   ports.RegistryService
	issuer     ports.IssuerService
	ledger     ports.LedgerService
}

func newTestEnv() *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:      store,
		pollRepo:   &memPollRepo{store: store},
		credRepo:   &memCredentialRepo{store: store},
		voteRepo:   &memVoteRepo{store: store},
		auditRepo:  &memAuditRepo{store: store},
		reportRepo: &memReportRepo{store: store},
	}
	env.audit = NewAuditService(env.auditRepo)
	env.verifier = NewVerifierService(env.pollRepo, env.credRepo, env.voteRepo, env.auditRepo)
	env.aggregator = NewAggregatorService(env.pollRepo, env.voteRepo, env.credRepo, env.reportRepo, env.audit)
	env.registry = NewRegistryService(env.pollRepo, env.audit, env.aggregator)
	env.issuer = NewIssuerService(env.pollRepo, env.credRepo, env.audit)
	env.ledger = NewLedgerService(env.pollRepo, env.voteRepo, env.verifier, env.audit)
	return env
}

func activePollInput(pollType domain.PollType, quorum, eligible int, options ...string) ports.CreatePollInput {
	return ports.CreatePollInput{
		Title:           "Feature priorities Q3",
		Type:            pollType,
		StartsAt:        time.Now().UTC().Add(-time.Hour),
		EndsAt:          time.Now().UTC().Add(time.Hour),
		QuorumThreshold: quorum,
		EligibleCount:   eligible,
		Options:         options,
	}
}
