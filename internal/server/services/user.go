package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// UserService manages profiles. It only ever returns public projections.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *UserService {
	return &UserService{db: db, repomanager: m, logger: logger.With("module", "user_service")}
}

func (s *UserService) List(ctx context.Context) ([]models.PublicUser, error) {
	const op = "users.List"

	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}
	out := make([]models.PublicUser, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.PublicUser, error) {
	const op = "users.Get"

	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	p := u.Public()
	return &p, nil
}

// Update applies the non-nil fields of in. The read and the write share one
// transaction.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.PublicUser, error) {
	const op = "users.Update"

	in, err := in.normalize(op)
	if err != nil {
		return nil, err
	}

	var updated *models.User
	err = s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		u, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if in.Email != nil {
			u.Email = *in.Email
		}
		if in.FirstName != nil {
			u.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			u.LastName = *in.LastName
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
		}

		updated, err = repo.Update(ctx, u)
		return err
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	s.logger.Info(ctx, "user updated", "user_id", id)
	p := updated.Public()
	return &p, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	const op = "users.Delete"

	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		return mapRepoError(op, err)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// inTx runs fn in a transaction. The memory store has no database, so fn
// runs directly with a nil handle.
func (s *UserService) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.Msgf(common.KindNotFound, op, "user not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		return common.Msgf(common.KindConflict, op, "email already exists")
	default:
		return common.E(common.KindInternal, op, err)
	}
}
