package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrEmptyTokenMap  = errors.New("token map is empty")
	ErrScanAborted    = errors.New("scan round aborted")
	ErrRetryExhausted = errors.New("retry attempts exhausted")
	ErrContextDone    = errors.New("context cancelled")
)
