package domain

import (
	"time"

	"github.com/google/uuid"
)

type OptionTally struct {
	OptionID uuid.UUID `json:"option_id"`
	Label    string    `json:"label"`
	Count    int       `json:"count"`
	Share    float64   `json:"share"`
	// AvgPosition is the mean rank for ranking polls (1 is best) and the
	// mean allocated percentage for budget polls.
	AvgPosition float64 `json:"avg_position,omitempty"`
}

type RatingStats struct {
	Mean         float64     `json:"mean"`
	Median       float64     `json:"median"`
	Distribution map[int]int `json:"distribution"`
}

// DecisionReport is the final artifact of a poll. It exposes aggregate
// counts only; nothing in it can be joined back to an identity.
type DecisionReport struct {
	ID                uuid.UUID     `json:"id"`
	PollID            uuid.UUID     `json:"poll_id"`
	PollType          PollType      `json:"poll_type"`
	GeneratedAt       time.Time     `json:"generated_at"`
	Tallies           []OptionTally `json:"tallies,omitempty"`
	Rating            *RatingStats  `json:"rating,omitempty"`
	Comments          []string      `json:"comments,omitempty"`
	VotesCast         int           `json:"votes_cast"`
	CredentialsIssued int           `json:"credentials_issued"`
	Participation     float64       `json:"participation"`
	QuorumThreshold   int           `json:"quorum_threshold"`
	QuorumMet         bool          `json:"quorum_met"`
	Consensus         float64       `json:"consensus"`
}
