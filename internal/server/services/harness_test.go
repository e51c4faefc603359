package services

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	store    *memStore
	repos    *memRepos
	tx       *memTransactor
	mailer   *fakeMailer
	hasher   *auth.Hasher
	codec    *auth.Codec
	tokens   *TokenService
	identity *IdentityService
	sessions *SessionService
	accounts *AccountService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  newMemStore(),
		mailer: &fakeMailer{},
		hasher: auth.NewHasher(bcrypt.MinCost),
		codec:  auth.NewCodec([]byte("test-secret"), 15*time.Minute, time.Hour),
	}
	h.repos = &memRepos{store: h.store}
	h.tx = &memTransactor{store: h.store}

	cfg := TokenConfig{
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
		PublicBaseURL:   "http://auth.test/",
	}
	h.tokens = NewTokenService(h.tx, h.repos, h.hasher, h.mailer, cfg, logging.Nop{})
	h.identity = NewIdentityService(h.tx, h.repos, h.hasher, h.tokens, logging.Nop{})
	h.sessions = NewSessionService(h.tx, h.repos, h.codec)
	h.accounts = NewAccountService(h.tx, h.repos, h.hasher, logging.Nop{})
	t.Cleanup(h.tokens.Wait)
	return h
}

// setClock pins the token service clock.
func (h *harness) setClock(now time.Time) {
	h.tokens.now = func() time.Time { return now }
}
