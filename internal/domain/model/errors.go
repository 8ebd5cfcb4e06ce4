package model

import "errors"

// Sentinel errors shared by the service and transport layers.
var (
	ErrInvalidJob          = errors.New("invalid grading job")
	ErrDuplicateRun        = errors.New("run already submitted")
	ErrBackpressure        = errors.New("grading queue is full")
	ErrRunNotFound         = errors.New("run not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotStarted          = errors.New("service not started")
)
