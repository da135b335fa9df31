package domain

import "errors"

var (
	// ErrValidation marks malformed input; rejected before any state mutation.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized marks a principal/user mismatch on connect or mark-read.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks a missing notification, schedule entry, or connection.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable marks a durable-store write-through failure. It is
	// surfaced to the caller for the durable channel only; other channels proceed.
	ErrStoreUnavailable = errors.New("durable store unavailable")
)
