package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrExecutionInFlight = errors.New("execution already in flight")
	ErrQueueFull         = errors.New("execution queue full")
	ErrLockHeld          = errors.New("lock already held")
	ErrInclusionTimeout  = errors.New("transaction inclusion timed out")
	ErrInvalidThreshold  = errors.New("spread threshold out of range")
	ErrUnknownVenue      = errors.New("unknown venue")
	ErrUnknownPair       = errors.New("unknown pair index")
	ErrMinVenues         = errors.New("at least two venues must remain selected")
	ErrMinPairs          = errors.New("at least one pair must remain selected")
	ErrNoQuote           = errors.New("no quote available")
)
