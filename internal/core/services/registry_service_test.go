package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govquorum/anonpoll/internal/core/domain"
	"github.com/govquorum/anonpoll/internal/core/ports"
)

func TestCreatePollValidatesSpec(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*ports.CreatePollInput)
	}{
		{"end before start", func(in *ports.CreatePollInput) {
			in.EndsAt = in.StartsAt.Add(-time.Minute)
		}},
		{"quorum above eligible count", func(in *ports.CreatePollInput) {
			in.QuorumThreshold = in.EligibleCount + 1
		}},
		{"zero quorum", func(in *ports.CreatePollInput) {
			in.QuorumThreshold = 0
		}},
		{"single option", func(in *ports.CreatePollInput) {
			in.Options = []string{"only"}
		}},
		{"duplicate option labels", func(in *ports.CreatePollInput) {
			in.Options = []string{"A", "A", "B"}
		}},
		{"empty title", func(in *ports.CreatePollInput) {
			in.Title = "   "
		}},
		{"unknown type", func(in *ports.CreatePollInput) {
			in.Type = "approval"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := activePollInput(domain.PollTypeSingleChoice, 3, 5, "A", "B", "C")
			tc.mutate(&input)
			_, err := env.registry.Create(ctx, "alice", input)
			assert.ErrorIs(t, err, domain.ErrInvalidPollSpec)
		})
	}
}

func TestCreatePollEmitsAuditEntry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 3, 5, "A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, poll.State)
	assert.Len(t, poll.Options, 3)

	created := domain.ActionPollCreated
	entries, err := env.audit.Query(ctx, domain.AuditFilter{PollID: &poll.ID, Action: &created})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Actor)
}

func TestLifecycleMonotonicity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	// Skipping a state is rejected.
	err = env.registry.Transition(ctx, "alice", poll.ID, domain.StateClosed)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	require.NoError(t, env.registry.Transition(ctx, "alice", poll.ID, domain.StateActive))
	require.NoError(t, env.registry.Transition(ctx, "alice", poll.ID, domain.StateClosed))

	// No backward transitions, ever.
	for _, target := range []domain.PollState{domain.StateDraft, domain.StateActive} {
		err = env.registry.Transition(ctx, "alice", poll.ID, target)
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	}

	// Close on close is rejected too.
	err = env.registry.Transition(ctx, "alice", poll.ID, domain.StateClosed)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestCloseDiscardsIssuanceSecretAndResolves(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	secret, err := env.pollRepo.GetIssuanceSecret(ctx, poll.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	require.NoError(t, env.registry.Close(ctx, "alice", poll.ID))

	secret, err = env.pollRepo.GetIssuanceSecret(ctx, poll.ID)
	require.NoError(t, err)
	assert.Empty(t, secret, "issuance secret must be discarded at close")

	// Close triggers aggregation, which resolves the poll.
	stored, err := env.registry.Get(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResolved, stored.State)
}

func TestTransitionToResolvedProducesReport(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	// Closing through a registry with no aggregator wired leaves the poll
	// closed with no report.
	bare := NewRegistryService(env.pollRepo, env.audit, nil)
	require.NoError(t, bare.Close(ctx, "alice", poll.ID))

	_, err = env.aggregator.GetReport(ctx, poll.ID)
	require.ErrorIs(t, err, domain.ErrPollNotResolved)

	// Without an aggregator the resolved target cannot be honored.
	err = bare.Transition(ctx, "alice", poll.ID, domain.StateResolved)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	// Resolving runs aggregation: the report exists as soon as the state
	// says resolved.
	require.NoError(t, env.registry.Transition(ctx, "alice", poll.ID, domain.StateResolved))

	stored, err := env.registry.Get(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResolved, stored.State)

	report, err := env.aggregator.GetReport(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, poll.ID, report.PollID)

	// Resolved is terminal.
	err = env.registry.Transition(ctx, "alice", poll.ID, domain.StateResolved)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestSweepAdvancesOverduePolls(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B")
	poll, err := env.registry.Create(ctx, "alice", input)
	require.NoError(t, err)

	// Before the end time the sweep only activates.
	require.NoError(t, env.registry.Sweep(ctx, time.Now().UTC()))
	stored, err := env.registry.Get(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, stored.State)

	// Past the end time the sweep closes and aggregation resolves.
	require.NoError(t, env.registry.Sweep(ctx, input.EndsAt.Add(time.Second)))
	stored, err = env.registry.Get(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateResolved, stored.State)
}
