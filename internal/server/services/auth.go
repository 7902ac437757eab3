// Package services contains server-side business logic. AuthService is the
// session manager: it registers and logs users in, rotates refresh tokens and
// guards access tokens. UserService and UploadService serve the profile API.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidRefresh     = "invalid refresh token"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   models.PublicUser
	Tokens TokenPair
}

// TokenSigner is satisfied by *auth.Signer.
type TokenSigner interface {
	Sign(p auth.Payload, ttl time.Duration) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// PasswordVerifier is satisfied by *auth.PasswordHasher.
type PasswordVerifier interface {
	Hash(plain string) (string, error)
	Verify(plain, storedHash string) (bool, error)
	VerifyMissing(plain string)
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signer      TokenSigner
	passwords   PasswordVerifier
	accessTTL   time.Duration
	refreshTTL  time.Duration
	logger      logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, signer TokenSigner, passwords PasswordVerifier, cfg *config.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		signer:      signer,
		passwords:   passwords,
		accessTTL:   cfg.AccessTokenValidityDuration,
		refreshTTL:  auth.RefreshTokenValidity,
		logger:      logger.With("module", "auth_service"),
	}
}

// Register creates an active user and opens its first session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	const op = "auth.Register"

	in, err := in.normalize(op)
	if err != nil {
		return nil, err
	}

	users := s.repomanager.Users(s.db)

	_, err = users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, common.Msgf(common.KindConflict, op, "email already exists")
	case !errors.Is(err, common.ErrorNotFound):
		return nil, common.E(common.KindInternal, op, err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}

	user, err := users.Create(ctx, &models.User{
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.Msgf(common.KindConflict, op, "email already exists")
		}
		return nil, common.E(common.KindInternal, op, err)
	}

	pair, err := s.openSession(ctx, op, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user.Public(), Tokens: *pair}, nil
}

// Login checks credentials and replaces any previous session of the user.
// An unknown email, a wrong password and a deactivated account all produce
// the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "auth.Login"

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.passwords.VerifyMissing(password)
			return nil, s.denyLogin(ctx, op, "unknown email")
		}
		return nil, common.E(common.KindInternal, op, err)
	}

	ok, err := s.passwords.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash is unreadable", "user_id", user.ID, "error", err)
		return nil, common.E(common.KindInternal, op, err)
	}
	if !ok {
		return nil, s.denyLogin(ctx, op, "password mismatch", "user_id", user.ID)
	}
	if !user.IsActive {
		return nil, s.denyLogin(ctx, op, "user inactive", "user_id", user.ID)
	}

	pair, err := s.openSession(ctx, op, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), Tokens: *pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// be the one whose hash is currently stored; the swap to the new hash is
// atomic, so a token can be exchanged at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	const op = "auth.Refresh"

	claims, err := s.signer.Verify(refreshToken)
	if err != nil {
		return nil, s.denyRefresh(ctx, op, err.Error())
	}
	if claims.Type != common.TokenTypeRefresh {
		return nil, s.denyRefresh(ctx, op, "wrong token type", "typ", claims.Type)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.denyRefresh(ctx, op, "unknown user", "user_id", claims.Subject)
		}
		return nil, common.E(common.KindInternal, op, err)
	}
	if !user.IsActive {
		return nil, s.denyRefresh(ctx, op, "user inactive", "user_id", user.ID)
	}

	store := s.repomanager.RefreshTokens(s.db)

	stored, err := store.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.denyRefresh(ctx, op, "unknown user", "user_id", user.ID)
		}
		return nil, common.E(common.KindInternal, op, err)
	}
	if stored == "" {
		return nil, s.denyRefresh(ctx, op, "no active session", "user_id", user.ID)
	}

	presented := auth.HashToken(refreshToken)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		s.logger.Warn(ctx, "superseded refresh token presented", "user_id", user.ID)
		return nil, s.denyRefresh(ctx, op, "hash mismatch", "user_id", user.ID)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}

	swapped, err := store.CompareAndSwap(ctx, user.ID, stored, auth.HashToken(pair.RefreshToken))
	if err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}
	if !swapped {
		return nil, s.denyRefresh(ctx, op, "lost rotation race", "user_id", user.ID)
	}

	return pair, nil
}

// Logout ends the session of userID. Calling it again is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	const op = "auth.Logout"

	if err := s.repomanager.RefreshTokens(s.db).Set(ctx, userID, ""); err != nil {
		return common.E(common.KindInternal, op, err)
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// Authenticate resolves an access token to its active user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "auth.Authenticate"

	claims, err := s.signer.Verify(accessToken)
	if err != nil {
		return nil, common.E(common.KindUnauthorized, op, err)
	}
	if claims.Type != common.TokenTypeAccess {
		return nil, common.E(common.KindUnauthorized, op, common.ErrInvalidToken)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.E(common.KindUnauthorized, op, err)
		}
		return nil, common.E(common.KindInternal, op, err)
	}
	if !user.IsActive {
		return nil, common.Msgf(common.KindUnauthorized, op, "user inactive")
	}
	return user, nil
}

// openSession issues a pair and overwrites whatever session the user had.
func (s *AuthService) openSession(ctx context.Context, op string, user *models.User) (*TokenPair, error) {
	pair, err := s.issuePair(user)
	if err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}
	if err := s.repomanager.RefreshTokens(s.db).Set(ctx, user.ID, auth.HashToken(pair.RefreshToken)); err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}
	return pair, nil
}

func (s *AuthService) issuePair(user *models.User) (*TokenPair, error) {
	access, err := s.signer.Sign(auth.Payload{UserID: user.ID, Email: user.Email, Type: common.TokenTypeAccess}, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signer.Sign(auth.Payload{UserID: user.ID, Email: user.Email, Type: common.TokenTypeRefresh}, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) denyLogin(ctx context.Context, op, reason string, args ...any) error {
	s.logger.Debug(ctx, "login refused", append([]any{"reason", reason}, args...)...)
	return common.Msgf(common.KindUnauthorized, op, msgInvalidCredentials)
}

func (s *AuthService) denyRefresh(ctx context.Context, op, reason string, args ...any) error {
	s.logger.Debug(ctx, "refresh refused", append([]any{"reason", reason}, args...)...)
	return common.Msgf(common.KindForbidden, op, msgInvalidRefresh)
}
