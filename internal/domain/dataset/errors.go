package dataset

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrDataNotFound   = errors.New("data not found")
	ErrDataParse      = errors.New("data parse error")
	ErrColumnNotFound = errors.New("column not found")
)
