// Package redisx opens go-redis clients the way the server expects them:
// parsed from a URL and verified with PING before use.
package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrBadConnString = errors.New("failed to parse redis connection string")
	ErrNotReady      = errors.New("redis is not ready")
)

// Options tune Connect. Zero values fall back to a single attempt with a 5s
// timeout.
type Options struct {
	RetryAttempts  int
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

// Connect parses url and pings the server, retrying up to RetryAttempts
// times. Failed clients are closed before the next attempt.
func Connect(ctx context.Context, url string, opts Options) (*redis.Client, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	connOpt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrBadConnString, err)
	}

	var lastErr error
	for attempt := 0; attempt < opts.RetryAttempts; attempt++ {
		client := redis.NewClient(connOpt)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if attempt == opts.RetryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(opts.RetryInterval):
		}
	}

	return nil, errors.Join(ErrNotReady, lastErr)
}
