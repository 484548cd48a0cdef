package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxResponseLength bounds open-response submissions.
const MaxResponseLength = 4000

// ValidatePayload checks a submission against the poll's type before any
// credential is consumed, so a malformed vote never burns a token.
func (p *Poll) ValidatePayload(payload VotePayload) error {
	switch p.Type {
	case PollTypeSingleChoice:
		return p.validateSingleChoice(payload)
	case PollTypeMultiChoice:
		return p.validateMultiChoice(payload)
	case PollTypeRatingScale:
		return p.validateRating(payload)
	case PollTypeOpenResponse:
		return p.validateOpenResponse(payload)
	case PollTypeRanking:
		return p.validateRanking(payload)
	case PollTypeBudgetPercentage:
		return p.validateBudget(payload)
	}
	return fmt.Errorf("%w: unknown poll type %q", ErrInvalidVotePayload, p.Type)
}

func (p *Poll) optionSet() map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(p.Options))
	for _, opt := range p.Options {
		set[opt.ID] = true
	}
	return set
}

func (p *Poll) validateSingleChoice(payload VotePayload) error {
	if payload.OptionID == nil {
		return fmt.Errorf("%w: option_id is required", ErrInvalidVotePayload)
	}
	if !p.optionSet()[*payload.OptionID] {
		return fmt.Errorf("%w: option does not belong to this poll", ErrInvalidVotePayload)
	}
	return nil
}

func (p *Poll) validateMultiChoice(payload VotePayload) error {
	if len(payload.OptionIDs) == 0 {
		return fmt.Errorf("%w: at least one option is required", ErrInvalidVotePayload)
	}
	options := p.optionSet()
	seen := make(map[uuid.UUID]bool, len(payload.OptionIDs))
	for _, id := range payload.OptionIDs {
		if !options[id] {
			return fmt.Errorf("%w: option does not belong to this poll", ErrInvalidVotePayload)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate option selection", ErrInvalidVotePayload)
		}
		seen[id] = true
	}
	return nil
}

func (p *Poll) validateRating(payload VotePayload) error {
	if payload.Rating == nil {
		return fmt.Errorf("%w: rating is required", ErrInvalidVotePayload)
	}
	if *payload.Rating < p.RatingMin || *payload.Rating > p.RatingMax {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidVotePayload, p.RatingMin, p.RatingMax)
	}
	return nil
}

func (p *Poll) validateOpenResponse(payload VotePayload) error {
	if strings.TrimSpace(payload.Response) == "" {
		return fmt.Errorf("%w: response text is required", ErrInvalidVotePayload)
	}
	if len(payload.Response) > MaxResponseLength {
		return fmt.Errorf("%w: response exceeds %d characters", ErrInvalidVotePayload, MaxResponseLength)
	}
	return nil
}

// validateRanking requires a full permutation of the poll's options.
func (p *Poll) validateRanking(payload VotePayload) error {
	options := p.optionSet()
	if len(payload.Ranking) != len(options) {
		return fmt.Errorf("%w: ranking must order all %d options", ErrInvalidVotePayload, len(options))
	}
	seen := make(map[uuid.UUID]bool, len(payload.Ranking))
	for _, id := range payload.Ranking {
		if !options[id] {
			return fmt.Errorf("%w: option does not belong to this poll", ErrInvalidVotePayload)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate option in ranking", ErrInvalidVotePayload)
		}
		seen[id] = true
	}
	return nil
}

func (p *Poll) validateBudget(payload VotePayload) error {
	if len(payload.Allocations) == 0 {
		return fmt.Errorf("%w: allocations are required", ErrInvalidVotePayload)
	}
	options := p.optionSet()
	total := 0
	for id, pct := range payload.Allocations {
		if !options[id] {
			return fmt.Errorf("%w: option does not belong to this poll", ErrInvalidVotePayload)
		}
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%w: allocation must be between 0 and 100", ErrInvalidVotePayload)
		}
		total += pct
	}
	if total != 100 {
		return fmt.Errorf("%w: allocations must sum to 100, got %d", ErrInvalidVotePayload, total)
	}
	return nil
}
