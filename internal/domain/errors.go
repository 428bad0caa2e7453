package domain

import "errors"

var (
	// ErrNotFound covers rows that are missing and rows owned by someone else.
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict means a row changed between read and write within a unit of work.
	ErrConflict = errors.New("conflicting concurrent update")
	// ErrRateLimited defers work to a later run; the item stays eligible.
	ErrRateLimited = errors.New("rate limited")
	ErrExternal    = errors.New("external dependency failure")
)
