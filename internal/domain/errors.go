package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailable indicates storage or the inference backend is unreachable
	ErrUnavailable = errors.New("service unavailable")
)
