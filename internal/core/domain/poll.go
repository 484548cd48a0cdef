package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PollType string

const (
	PollTypeSingleChoice     PollType = "single_choice"
	PollTypeMultiChoice      PollType = "multi_choice"
	PollTypeRatingScale      PollType = "rating_scale"
	PollTypeOpenResponse     PollType = "open_response"
	PollTypeRanking          PollType = "ranking"
	PollTypeBudgetPercentage PollType = "budget_percentage"
)

type AnonymityLevel string

const (
	AnonymityFull         AnonymityLevel = "fully_anonymous"
	AnonymityPseudonymous AnonymityLevel = "pseudonymous"
)

type VisibilityPolicy string

const (
	VisibilityHiddenUntilClose VisibilityPolicy = "hidden_until_close"
	VisibilityLive             VisibilityPolicy = "live"
	VisibilityAdminOnly        VisibilityPolicy = "admin_only"
)

type PollState string

const (
	StateDraft    PollState = "draft"
	StateActive   PollState = "active"
	StateClosed   PollState = "closed"
	StateResolved PollState = "resolved"
)

// stateRank orders the lifecycle. Transitions only move forward, one step
// at a time.
var stateRank = map[PollState]int{
	StateDraft:    0,
	StateActive:   1,
	StateClosed:   2,
	StateResolved: 3,
}

func ValidTransition(from, to PollState) bool {
	fr, ok := stateRank[from]
	if !ok {
		return false
	}
	tr, ok := stateRank[to]
	if !ok {
		return false
	}
	return tr == fr+1
}

type Poll struct {
	ID              uuid.UUID        `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Type            PollType         `json:"type"`
	Anonymity       AnonymityLevel   `json:"anonymity"`
	Visibility      VisibilityPolicy `json:"visibility"`
	State           PollState        `json:"state"`
	StartsAt        time.Time        `json:"starts_at"`
	EndsAt          time.Time        `json:"ends_at"`
	QuorumThreshold int              `json:"quorum_threshold"`
	EligibleCount   int              `json:"eligible_count"`
	RatingMin       int              `json:"rating_min,omitempty"`
	RatingMax       int              `json:"rating_max,omitempty"`
	Options         []PollOption     `json:"options,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type PollOption struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"poll_id"`
	Label    string    `json:"label"`
	Position int       `json:"position"`
}

// HasChoiceOptions reports whether this poll type carries an option set.
func (t PollType) HasChoiceOptions() bool {
	switch t {
	case PollTypeSingleChoice, PollTypeMultiChoice, PollTypeRanking, PollTypeBudgetPercentage:
		return true
	}
	return false
}

func (t PollType) Valid() bool {
	switch t {
	case PollTypeSingleChoice, PollTypeMultiChoice, PollTypeRatingScale,
		PollTypeOpenResponse, PollTypeRanking, PollTypeBudgetPercentage:
		return true
	}
	return false
}

// EffectiveState folds the wall clock into the stored state: a draft poll
// past its start time reads as active, an active poll past its end time
// reads as closed. Storage catches up lazily or via the sweeper; callers
// must never trust the stored state alone.
func (p *Poll) EffectiveState(now time.Time) PollState {
	switch p.State {
	case StateDraft:
		if !now.Before(p.StartsAt) {
			if !now.Before(p.EndsAt) {
				return StateClosed
			}
			return StateActive
		}
	case StateActive:
		if !now.Before(p.EndsAt) {
			return StateClosed
		}
	}
	return p.State
}

// Validate checks the creation invariants: date ordering, quorum bounds,
// option set shape and rating bounds for the given poll type.
func (p *Poll) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPollSpec)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown poll type %q", ErrInvalidPollSpec, p.Type)
	}
	if !p.EndsAt.After(p.StartsAt) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidPollSpec)
	}
	if p.QuorumThreshold < 1 {
		return fmt.Errorf("%w: quorum threshold must be at least 1", ErrInvalidPollSpec)
	}
	if p.EligibleCount < 1 {
		return fmt.Errorf("%w: eligible administrator count must be at least 1", ErrInvalidPollSpec)
	}
	if p.QuorumThreshold > p.EligibleCount {
		return fmt.Errorf("%w: quorum threshold exceeds eligible administrator count", ErrInvalidPollSpec)
	}

	if p.Type.HasChoiceOptions() {
		if len(p.Options) < 2 {
			return fmt.Errorf("%w: at least two options are required", ErrInvalidPollSpec)
		}
		positions := make(map[int]bool, len(p.Options))
		labels := make(map[string]bool, len(p.Options))
		for _, opt := range p.Options {
			if strings.TrimSpace(opt.Label) == "" {
				return fmt.Errorf("%w: option labels must not be empty", ErrInvalidPollSpec)
			}
			if positions[opt.Position] {
				return fmt.Errorf("%w: duplicate option position %d", ErrInvalidPollSpec, opt.Position)
			}
			if labels[opt.Label] {
				return fmt.Errorf("%w: duplicate option label %q", ErrInvalidPollSpec, opt.Label)
			}
			positions[opt.Position] = true
			labels[opt.Label] = true
		}
	} else if len(p.Options) > 0 {
		return fmt.Errorf("%w: poll type %q does not take options", ErrInvalidPollSpec, p.Type)
	}

	if p.Type == PollTypeRatingScale && p.RatingMin >= p.RatingMax {
		return fmt.Errorf("%w: rating bounds must satisfy min < max", ErrInvalidPollSpec)
	}

	return nil
}
