// Package refreshtokens persists, per user, the hash of the one refresh token
// that is currently valid. An empty hash means the user has no session.
package refreshtokens

import "context"

// Repository is the refresh token store. Implementations must make
// CompareAndSwap atomic: of two concurrent swaps from the same expected
// hash, at most one may report true.
type Repository interface {
	// Get returns the stored hash, or "" when the user has no session.
	Get(ctx context.Context, userID string) (string, error)

	// Set overwrites the stored hash unconditionally. An empty hash clears
	// it. Clearing an absent session is not an error.
	Set(ctx context.Context, userID string, hash string) error

	// CompareAndSwap replaces expected with next and reports whether the
	// stored value still was expected. An empty expected never matches.
	CompareAndSwap(ctx context.Context, userID string, expected, next string) (bool, error)
}
