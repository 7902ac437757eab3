// Package auth holds the two cryptographic building blocks of the session
// lifecycle: the HS256 token signer and the bcrypt credential verifier.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshTokenValidity is fixed; only the access token lifetime is
// configurable.
const RefreshTokenValidity = 7 * 24 * time.Hour

// Claims carries the subject, email and token type on top of the
// registered claims. The type keeps an access token from being replayed as a
// refresh token and the other way round.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Type  string `json:"typ"`
}

// Payload is what callers put into a token; the signer adds iat, exp, iss
// and jti.
type Payload struct {
	UserID string
	Email  string
	Type   string
}

// SignerConfig is built once at startup and handed to NewSigner.
type SignerConfig struct {
	Secret []byte
	Issuer string
}

type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

func NewSigner(cfg SignerConfig) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	s := &Signer{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	s.parser = jwt.NewParser(opts...)
	return s, nil
}

// Sign issues a token for p that expires ttl from now. Every token gets a
// random jti, so two tokens for the same payload issued within the same
// second still differ.
func (s *Signer) Sign(p Payload, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: p.Email,
		Type:  p.Type,
	})

	return token.SignedString(s.secret)
}

// Verify checks the signature, algorithm, issuer and expiry of token.
// Expired tokens yield common.ErrTokenExpired and every other failure
// yields common.ErrInvalidToken.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// HashToken returns the hex SHA-256 of a refresh token. Only this digest is
// ever persisted. It is deterministic so stores can compare-and-swap on it.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
