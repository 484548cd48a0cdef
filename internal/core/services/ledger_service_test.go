package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govquorum/anonpoll/internal/core/domain"
)

func singleChoicePayload(poll *domain.Poll, position int) domain.VotePayload {
	id := poll.Options[position].ID
	return domain.VotePayload{OptionID: &id}
}

func TestSubmitVoteAcceptsAndConsumes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	token, err := env.issuer.RequestToken(ctx, poll.ID, "alice")
	require.NoError(t, err)

	voteID, err := env.ledger.SubmitVote(ctx, token, poll.ID, singleChoicePayload(poll, 0))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, voteID)

	// The credential is spent now.
	_, err = env.ledger.SubmitVote(ctx, token, poll.ID, singleChoicePayload(poll, 1))
	assert.ErrorIs(t, err, domain.ErrTokenAlreadyConsumed)

	count, err := env.voteRepo.CountByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSubmitVoteCrossPollToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	pollA, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)
	pollB, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "X", "Y"))
	require.NoError(t, err)

	token, err := env.issuer.RequestToken(ctx, pollA.ID, "alice")
	require.NoError(t, err)

	// A token minted for pollA is worthless in pollB, and not burned.
	_, err = env.ledger.SubmitVote(ctx, token, pollB.ID, singleChoicePayload(pollB, 0))
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	_, err = env.ledger.SubmitVote(ctx, token, pollA.ID, singleChoicePayload(pollA, 0))
	assert.NoError(t, err)
}

func TestSubmitVoteInvalidPayloadDoesNotBurnToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	token, err := env.issuer.RequestToken(ctx, poll.ID, "alice")
	require.NoError(t, err)

	// Option from another poll.
	foreign := uuid.New()
	_, err = env.ledger.SubmitVote(ctx, token, poll.ID, domain.VotePayload{OptionID: &foreign})
	assert.ErrorIs(t, err, domain.ErrInvalidVotePayload)

	// Missing selection.
	_, err = env.ledger.SubmitVote(ctx, token, poll.ID, domain.VotePayload{})
	assert.ErrorIs(t, err, domain.ErrInvalidVotePayload)

	// The token survived both rejections.
	_, err = env.ledger.SubmitVote(ctx, token, poll.ID, singleChoicePayload(poll, 0))
	assert.NoError(t, err)
}

func TestSubmitVoteRejectedAfterClose(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	token, err := env.issuer.RequestToken(ctx, poll.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, env.registry.Close(ctx, "alice", poll.ID))

	_, err = env.ledger.SubmitVote(ctx, token, poll.ID, singleChoicePayload(poll, 0))
	assert.ErrorIs(t, err, domain.ErrPollNotActive)
}

// Two submissions race on the same token with different payloads: exactly
// one vote id comes back, the loser gets TokenAlreadyConsumed, and the
// ledger holds one vote.
func TestSubmitVoteRaceOnSameToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 5, "A", "B"))
	require.NoError(t, err)

	token, err := env.issuer.RequestToken(ctx, poll.ID, "alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.ledger.SubmitVote(ctx, token, poll.ID, singleChoicePayload(poll, i))
		}(i)
	}
	wg.Wait()

	accepted, consumedErrs := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case assert.ErrorIs(t, err, domain.ErrTokenAlreadyConsumed):
			consumedErrs++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, consumedErrs)

	count, err := env.voteRepo.CountByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// Conservation: N concurrent submissions over M distinct valid tokens plus
// reused and invalid tokens produce exactly M accepted votes and N-M
// rejections, with consumed credentials matching stored votes.
func TestSubmitVoteConservation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	poll, err := env.registry.Create(ctx, "alice", activePollInput(domain.PollTypeSingleChoice, 1, 40, "A", "B"))
	require.NoError(t, err)

	const validTokens = 12
	tokens := make([]string, 0, validTokens)
	for i := 0; i < validTokens; i++ {
		identity := string(rune('a' + i))
		token, err := env.issuer.RequestToken(ctx, poll.ID, identity)
		require.NoError(t, err)
		tokens = append(tokens, token)
	}

	// Each valid token submitted twice, plus a batch of garbage tokens.
	var submissions []string
	submissions = append(submissions, tokens...)
	submissions = append(submissions, tokens...)
	for i := 0; i < 6; i++ {
		submissions = append(submissions, uuid.NewString())
	}

	var wg sync.WaitGroup
	results := make([]error, len(submissions))
	for i, token := range submissions {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			_, results[i] = env.ledger.SubmitVote(ctx, token, poll.ID, singleChoicePayload(poll, i%2))
		}(i, token)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		}
	}
	assert.Equal(t, validTokens, accepted, "exactly one vote per valid token")

	votes, err := env.voteRepo.CountByPoll(ctx, poll.ID)
	require.NoError(t, err)
	consumed, err := env.credRepo.CountConsumed(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, validTokens, votes)
	assert.Equal(t, votes, consumed, "consumed credentials must equal stored votes")
}
