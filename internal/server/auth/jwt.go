// Package auth holds the credential primitives of the server: the JWT
// session codec, the password hasher, ephemeral secret generation and the
// request context carrying the authenticated account.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes the two session token variants.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the JWT payload: the registered claims (subject = account id)
// plus the token variant and the account id under its legacy name.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"userId"`
	TokenType TokenType `json:"typ"`
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Codec issues and verifies HS256 session tokens.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec returns a codec signing with secret.
func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue mints an access and a refresh token for accountID.
func (c *Codec) Issue(accountID string) (*TokenPair, error) {
	access, err := c.sign(accountID, TokenTypeAccess, c.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := c.sign(accountID, TokenTypeRefresh, c.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (c *Codec) sign(accountID string, typ TokenType, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    accountID,
		TokenType: typ,
	})

	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// VerifyAccess returns the account id carried by an access token.
func (c *Codec) VerifyAccess(token string) (string, error) {
	return c.verify(token, TokenTypeAccess)
}

// VerifyRefresh returns the account id carried by a refresh token.
func (c *Codec) VerifyRefresh(token string) (string, error) {
	return c.verify(token, TokenTypeRefresh)
}

// verify maps parse failures to common.ErrTokenMalformed,
// common.ErrTokenExpired or common.ErrTokenSignatureInvalid; anything else
// wrong with the token is common.ErrInvalidToken.
func (c *Codec) verify(tokenString string, want TokenType) (string, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", common.ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", common.ErrTokenSignatureInvalid
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", common.ErrTokenExpired
		default:
			return "", common.ErrInvalidToken
		}
	}

	if claims.TokenType != want || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
