// Package limiter throttles login attempts and public lookups.
package limiter

import (
	"context"
	"time"
)

// Lockout tracks failed logins per (username, client) and blocks after too many.
type Lockout interface {
	// Allow reports whether a login may be attempted and, if not, for how long it is blocked.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the failure counter.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure records a failed attempt and reports whether it triggered a block.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

// Window is a fixed-window request limiter keyed by caller.
type Window interface {
	Allow(ctx context.Context, key string) bool
	// Period is the window length; a rejected caller may retry after it.
	Period() time.Duration
}

// Unlimited allows everything. Used when no backing store is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) bool { return true }

func (Unlimited) Period() time.Duration { return 0 }
