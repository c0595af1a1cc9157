// Package login implements the authentication state machine as a
// stream.Filter, plus a rate limiter guarding repeated login attempts
// from the same remote host.
package login

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// LoginRateLimiter bounds how often a given remote host may present
// candidate credentials, independent of any single session's attempt
// counter — it stops a reconnecting client from resetting max_tries by
// dropping the connection and trying again.
type LoginRateLimiter struct {
	limiter *catrate.Limiter
}

// NewLoginRateLimiter builds a limiter from a set of sliding windows, e.g.
// {10 * time.Second: 2} for "2 attempts per 10 seconds per host".
func NewLoginRateLimiter(windows map[time.Duration]int) *LoginRateLimiter {
	return &LoginRateLimiter{limiter: catrate.NewLimiter(windows)}
}

// Allow reports whether remoteHost may attempt another login right now. If
// not, retryAfter is the earliest time at which it may.
func (l *LoginRateLimiter) Allow(remoteHost string) (retryAfter time.Time, ok bool) {
	if l == nil || l.limiter == nil {
		return time.Time{}, true
	}
	return l.limiter.Allow(remoteHost)
}
