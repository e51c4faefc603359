// Package common defines shared sentinel errors used across the gophauth
// server layers. Callers should use errors.Is to match these values and
// KindOf to classify them for a transport.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Identity resolution errors.
	ErrEmailTaken           = errors.New("user already exists")
	ErrEmailConflict        = errors.New("email already registered with different provider")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountBanned        = errors.New("account has been banned")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrAccountNotFound      = errors.New("user not found")
	ErrEmailInUse           = errors.New("email already in use")
	ErrAlreadyVerified      = errors.New("email already verified")
	ErrProviderEmailMissing = errors.New("provider did not return an email address")
	ErrForbidden            = errors.New("forbidden")

	// ErrSessionAccountMissing is a valid session token naming an account
	// that no longer exists.
	ErrSessionAccountMissing = errors.New("session account not found")

	// Ephemeral token errors. Not-found and expired are deliberately one value.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// Session token errors.
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

// Kind groups errors by how a caller is expected to react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidOrExpiredToken
)

var kindNames = [...]string{
	KindInternal:              "internal",
	KindValidation:            "validation",
	KindConflict:              "conflict",
	KindInvalidCredentials:    "invalid_credentials",
	KindUnauthorized:          "unauthorized",
	KindForbidden:             "forbidden",
	KindNotFound:              "not_found",
	KindInvalidOrExpiredToken: "invalid_or_expired_token",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrorValidation, KindValidation},
	{ErrAlreadyVerified, KindValidation},
	{ErrProviderEmailMissing, KindValidation},
	{ErrEmailTaken, KindConflict},
	{ErrEmailConflict, KindConflict},
	{ErrEmailInUse, KindConflict},
	{ErrorAlreadyExists, KindConflict},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrorUnauthorized, KindUnauthorized},
	{ErrSessionAccountMissing, KindUnauthorized},
	{ErrInvalidToken, KindUnauthorized},
	{ErrTokenMalformed, KindUnauthorized},
	{ErrTokenExpired, KindUnauthorized},
	{ErrTokenSignatureInvalid, KindUnauthorized},
	{ErrAccountBanned, KindForbidden},
	{ErrAccountInactive, KindForbidden},
	{ErrForbidden, KindForbidden},
	{ErrAccountNotFound, KindNotFound},
	{ErrorNotFound, KindNotFound},
	{ErrInvalidOrExpiredToken, KindInvalidOrExpiredToken},
}

// KindOf classifies err. Unknown errors, including collaborator failures,
// are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
