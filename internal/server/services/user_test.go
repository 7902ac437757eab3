package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func seedUsers(t *testing.T, rm repomanager.RepositoryManager, emails ...string) []*models.User {
	t.Helper()
	var out []*models.User
	for _, e := range emails {
		u, err := rm.Users(nil).Create(context.Background(), &models.User{
			Email: e, FirstName: "Test", LastName: "User", PasswordHash: "$2a$04$secret", RefreshTokenHash: "h", IsActive: true,
		})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func TestUserService_ListAndGet(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := repomanager.NewMemoryRepositoryManager()
	seeded := seedUsers(t, rm, "a@example.com", "b@example.com")
	svc := NewUserService(db, rm, testLogger())
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := svc.Get(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, "user not found", common.PublicMessage(err))
}

func TestUserService_UpdatePartial(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := repomanager.NewMemoryRepositoryManager()
	seeded := seedUsers(t, rm, "a@example.com")
	svc := NewUserService(db, rm, testLogger())

	got, err := svc.Update(context.Background(), seeded[0].ID, UpdateUserInput{
		Email:    ptr(" New@Example.com "),
		IsActive: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "Test", got.FirstName, "untouched fields keep their value")
	assert.False(t, got.IsActive)

	stored, err := rm.Users(nil).GetByID(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "h", stored.RefreshTokenHash, "profile updates never touch the session")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestUserService_UpdateWithoutDatabase(t *testing.T) {
	rm := repomanager.NewMemoryRepositoryManager()
	seeded := seedUsers(t, rm, "alice@example.com")
	svc := NewUserService(nil, rm, testLogger())
	ctx := context.Background()

	got, err := svc.Update(ctx, seeded[0].ID, UpdateUserInput{FirstName: ptr("Alicia")})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", got.FirstName)

	stored, err := rm.Users(nil).GetByID(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", stored.FirstName)

	_, err = svc.Update(ctx, "missing", UpdateUserInput{FirstName: ptr("Zed")})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserService_UpdateErrors(t *testing.T) {
	rm := repomanager.NewMemoryRepositoryManager()
	seeded := seedUsers(t, rm, "a@example.com", "b@example.com")

	t.Run("validation happens before the transaction", func(t *testing.T) {
		db, mock := newSQLMockDB(t)
		svc := NewUserService(db, rm, testLogger())
		_, err := svc.Update(context.Background(), seeded[0].ID, UpdateUserInput{FirstName: ptr("x")})
		require.ErrorIs(t, err, common.ErrorValidation)
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("sql expectations: %v", err)
		}
	})

	t.Run("not found rolls back", func(t *testing.T) {
		db, mock := newSQLMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()
		svc := NewUserService(db, rm, testLogger())
		_, err := svc.Update(context.Background(), "missing", UpdateUserInput{FirstName: ptr("Zed")})
		require.ErrorIs(t, err, common.ErrorNotFound)
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("sql expectations: %v", err)
		}
	})

	t.Run("taken email conflicts", func(t *testing.T) {
		db, mock := newSQLMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()
		svc := NewUserService(db, rm, testLogger())
		_, err := svc.Update(context.Background(), seeded[0].ID, UpdateUserInput{Email: ptr("b@example.com")})
		require.ErrorIs(t, err, common.ErrorAlreadyExists)
	})

	t.Run("begin failure is internal", func(t *testing.T) {
		db, mock := newSQLMockDB(t)
		mock.ExpectBegin().WillReturnError(errBoom{})
		svc := NewUserService(db, rm, testLogger())
		_, err := svc.Update(context.Background(), seeded[0].ID, UpdateUserInput{FirstName: ptr("Zed")})
		require.ErrorIs(t, err, common.ErrorInternal)
	})
}

type listFailRepo struct{ users.Repository }

func (listFailRepo) List(context.Context) ([]*models.User, error) { return nil, errBoom{} }

func TestUserService_ListError(t *testing.T) {
	rm := &fakeRepoManager{u: listFailRepo{users.NewMemoryRepository()}}
	svc := NewUserService(nil, rm, testLogger())

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, "internal server error", common.PublicMessage(err), "causes must not leak")
}

func TestUserService_Delete(t *testing.T) {
	rm := repomanager.NewMemoryRepositoryManager()
	seeded := seedUsers(t, rm, "a@example.com")
	svc := NewUserService(nil, rm, testLogger())

	require.NoError(t, svc.Delete(context.Background(), seeded[0].ID))
	require.ErrorIs(t, svc.Delete(context.Background(), seeded[0].ID), common.ErrorNotFound)
}
