package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

// PostgresRepository keeps the hash in users.refresh_token_hash. NULL means
// no session.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullable(hash string) sql.NullString {
	return sql.NullString{String: hash, Valid: hash != ""}
}

// Get returns common.ErrorNotFound for an unknown user.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT refresh_token_hash
		FROM users
		WHERE id = $1
	`
	var hash sql.NullString
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return hash.String, nil
}

func (r *PostgresRepository) Set(ctx context.Context, userID string, hash string) error {
	query := `
		UPDATE users
		SET refresh_token_hash = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID, nullable(hash)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CompareAndSwap relies on the row lock taken by UPDATE: a second
// concurrent swap re-evaluates the WHERE clause after the first commits and
// matches nothing.
func (r *PostgresRepository) CompareAndSwap(ctx context.Context, userID string, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	query := `
		UPDATE users
		SET refresh_token_hash = $3
		WHERE id = $1 AND refresh_token_hash = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, expected, nullable(next))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
