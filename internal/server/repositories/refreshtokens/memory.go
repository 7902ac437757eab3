package refreshtokens

import (
	"context"
)

// hashHolder is satisfied by users.MemoryRepository.
type hashHolder interface {
	GetRefreshHash(userID string) (string, error)
	SetRefreshHash(userID, hash string)
	CompareAndSwapRefreshHash(userID, expected, next string) bool
}

// MemoryRepository stores the hash on the in-memory user record, so it
// follows the same rules as the Postgres column.
type MemoryRepository struct {
	users hashHolder
}

func NewMemoryRepository(users hashHolder) *MemoryRepository {
	return &MemoryRepository{users: users}
}

func (r *MemoryRepository) Get(_ context.Context, userID string) (string, error) {
	return r.users.GetRefreshHash(userID)
}

func (r *MemoryRepository) Set(_ context.Context, userID string, hash string) error {
	r.users.SetRefreshHash(userID, hash)
	return nil
}

func (r *MemoryRepository) CompareAndSwap(_ context.Context, userID string, expected, next string) (bool, error) {
	return r.users.CompareAndSwapRefreshHash(userID, expected, next), nil
}
