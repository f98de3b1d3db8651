// Package session records issued session ids so that logout can revoke a
// token before it expires.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownSession is returned for ids that were never issued, have
// expired, or were revoked.
var ErrUnknownSession = errors.New("unknown or revoked session")

type Registry interface {
	Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	// Lookup returns the user the session was issued to.
	Lookup(ctx context.Context, sessionID string) (string, error)
	Revoke(ctx context.Context, sessionID string) error
}
