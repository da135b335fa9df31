package ratelimit

import "context"

// Limiter is a token-bucket consulted before doing work on behalf of a
// caller. The key is the caller identity for HTTP entry points and the
// delivery kind for the outbound worker.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
