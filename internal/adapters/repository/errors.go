package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound         = errors.New("participant not found")
	ErrInvalidLimit     = errors.New("invalid leaderboard limit")
	ErrInvalidScore     = errors.New("score must be within [0,1]")
	ErrEmptyParticipant = errors.New("participant is required")
)
