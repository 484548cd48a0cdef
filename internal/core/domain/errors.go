package domain

import "errors"

var (
	ErrPollNotFound            = errors.New("poll not found")
	ErrInvalidPollID           = errors.New("invalid poll id")
	ErrInvalidPollSpec         = errors.New("invalid poll spec")
	ErrInvalidStateTransition  = errors.New("invalid poll state transition")
	ErrPollNotActive           = errors.New("poll is not active")
	ErrCredentialAlreadyIssued = errors.New("credential already issued for this poll")
	ErrTokenAlreadyConsumed    = errors.New("voting token already consumed")
	ErrTokenNotFound           = errors.New("voting token not found or expired")
	ErrInvalidVotePayload      = errors.New("invalid vote payload for poll type")
	ErrPollNotResolved         = errors.New("poll has no resolved report")
	ErrTxConflict              = errors.New("storage transaction conflict")
	ErrInternal                = errors.New("internal server error")
)
