package utils

import "errors"

var (
	// ErrNotFound is returned when a sale, discrepancy or report id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned when an input payload fails validation before any write.
	ErrValidation = errors.New("validation failed")

	// ErrFetchFailed wraps network/auth failures from external ticketing platforms.
	ErrFetchFailed = errors.New("platform fetch failed")

	// ErrRunInProgress is returned when a reconciliation run for the same
	// (event, platform) pair already holds the run lock.
	ErrRunInProgress = errors.New("reconciliation already in progress")
)
