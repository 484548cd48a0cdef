package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govquorum/anonpoll/internal/core/domain"
)

func TestRequestTokenIssuesOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	token, err := env.issuer.RequestToken(ctx, poll.ID, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// Second request for the same (poll, identity) is refused; the first
	// token is not handed out again.
	_, err = env.issuer.RequestToken(ctx, poll.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrCredentialAlreadyIssued)

	// A different administrator still gets a token.
	other, err := env.issuer.RequestToken(ctx, poll.ID, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestRequestTokenRequiresActivePoll(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B")
	input.StartsAt = time.Now().UTC().Add(time.Hour)
	input.EndsAt = time.Now().UTC().Add(2 * time.Hour)
	poll, err := env.registry.Create(ctx, "alice", input)
	require.NoError(t, err)

	_, err = env.issuer.RequestToken(ctx, poll.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrPollNotActive)
}

func TestRequestTokenRefusedAfterClose(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)
	require.NoError(t, env.registry.Close(ctx, "alice", poll.ID))

	_, err = env.issuer.RequestToken(ctx, poll.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrPollNotActive)
}

func TestIssuanceStoreHoldsNoIdentity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	token, err := env.issuer.RequestToken(ctx, poll.ID, "alice")
	require.NoError(t, err)

	env.store.mu.Lock()
	defer env.store.mu.Unlock()

	// The issuance record is a one-way derivation, never the identity,
	// and the credential row knows nothing about who received it.
	for key := range env.store.issuance[poll.ID] {
		assert.NotContains(t, key, "alice")
		assert.NotEqual(t, token, key)
	}
	cred := env.store.creds[token]
	require.NotNil(t, cred)
	assert.Equal(t, poll.ID, cred.PollID)
}

func TestRequestTokenUnknownPoll(t *testing.T) {
	env := newTestEnv()

	_, err := env.issuer.RequestToken(context.Background(), uuid.New(), "alice")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}
