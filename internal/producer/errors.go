package producer

import "errors"

// Sentinel errors returned by Produce.
var (
	ErrTooFewRows  = errors.New("dataset has too few rows")
	ErrNoFeatures  = errors.New("dataset has no numeric feature columns")
	ErrNoHeldOut   = errors.New("dataset has no labelled held-out rows")
	ErrNoTraining  = errors.New("dataset has no labelled training rows")
	ErrInvalidArgs = errors.New("invalid producer configuration")
)
