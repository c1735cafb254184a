// Package errs holds the error kinds the HTTP layer maps to status codes.
package errs

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream failure")
	ErrStore        = errors.New("store failure")
	ErrRateLimited  = errors.New("rate limited")
)
