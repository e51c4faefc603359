package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/ephemeraltokens"
)

// memStore is an in-memory stand-in for the database. All access is
// serialized by mu: plain calls take it per operation, transactions hold it
// for their whole duration and restore a snapshot on error.
type memStore struct {
	mu       sync.Mutex
	seq      int
	accounts map[string]models.Account
	tokens   map[models.TokenKind]map[string]models.EphemeralToken

	failCreateAccount error
	failDeleteToken   error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]models.Account{},
		tokens: map[models.TokenKind]map[string]models.EphemeralToken{
			models.TokenKindEmailVerification: {},
			models.TokenKindPasswordReset:     {},
		},
	}
}

type memSnapshot struct {
	seq      int
	accounts map[string]models.Account
	tokens   map[models.TokenKind]map[string]models.EphemeralToken
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		seq:      s.seq,
		accounts: make(map[string]models.Account, len(s.accounts)),
		tokens:   map[models.TokenKind]map[string]models.EphemeralToken{},
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for kind, m := range s.tokens {
		cp := make(map[string]models.EphemeralToken, len(m))
		for k, v := range m {
			cp[k] = v
		}
		snap.tokens[kind] = cp
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.seq = snap.seq
	s.accounts = snap.accounts
	s.tokens = snap.tokens
}

// account returns a copy of the stored account, for assertions.
func (s *memStore) account(id string) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *memStore) tokenCount(kind models.TokenKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens[kind])
}

func (s *memStore) accountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *memStore) put(a models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if a.ID == "" {
		a.ID = fmt.Sprintf("acc-%d", s.seq)
	}
	a.Email = common.NormalizeEmail(a.Email)
	s.accounts[a.ID] = a
	return &a
}

// memHandle is the DBTX handed out by the fakes. Repositories only use it to
// tell whether the caller already holds the store lock.
type memHandle struct{ inTx bool }

func (memHandle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("memHandle: not a real database")
}

func (memHandle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("memHandle: not a real database")
}

func (memHandle) QueryRowContext(context.Context, string, ...any) *sql.Row { return nil }

type memTransactor struct {
	store *memStore
}

func (t *memTransactor) DB() dbx.DBTX { return memHandle{} }

func (t *memTransactor) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	snap := t.store.snapshot()
	defer func() {
		if err != nil {
			t.store.restore(snap)
		}
	}()
	return fn(ctx, memHandle{inTx: true})
}

type memRepos struct {
	store *memStore
}

func (m *memRepos) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memRepos) Accounts(db dbx.DBTX) accounts.Repository {
	h, _ := db.(memHandle)
	return &memAccounts{s: m.store, inTx: h.inTx}
}

func (m *memRepos) EphemeralTokens(db dbx.DBTX) ephemeraltokens.Repository {
	h, _ := db.(memHandle)
	return &memTokens{s: m.store, inTx: h.inTx}
}

type memAccounts struct {
	s    *memStore
	inTx bool
}

func (r *memAccounts) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *memAccounts) find(match func(a models.Account) bool) (*models.Account, error) {
	for _, a := range r.s.accounts {
		if match(a) {
			return &a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	defer r.lock()()
	return r.find(func(a models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *memAccounts) FindByID(_ context.Context, id string) (*models.Account, error) {
	defer r.lock()()
	return r.find(func(a models.Account) bool { return a.ID == id })
}

func (r *memAccounts) FindByProviderIdentity(_ context.Context, p models.Provider, id string) (*models.Account, error) {
	defer r.lock()()
	return r.find(func(a models.Account) bool { return a.Provider == p && a.ProviderID == id })
}

func (r *memAccounts) conflicts(a models.Account) bool {
	for _, o := range r.s.accounts {
		if o.ID == a.ID {
			continue
		}
		if strings.EqualFold(o.Email, a.Email) {
			return true
		}
		if a.ProviderID != "" && o.Provider == a.Provider && o.ProviderID == a.ProviderID {
			return true
		}
	}
	return false
}

func (r *memAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	defer r.lock()()
	if r.s.failCreateAccount != nil {
		return nil, r.s.failCreateAccount
	}
	if r.conflicts(*a) {
		return nil, fmt.Errorf("%w: duplicate", common.ErrorAlreadyExists)
	}
	r.s.seq++
	c := *a
	c.ID = fmt.Sprintf("acc-%d", r.s.seq)
	c.IsActive = true
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.s.accounts[c.ID] = c
	return &c, nil
}

func (r *memAccounts) mutate(id string, fn func(a *models.Account) error) (*models.Account, error) {
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if err := fn(&a); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now()
	r.s.accounts[id] = a
	return &a, nil
}

func (r *memAccounts) UpdateFields(_ context.Context, id string, u models.AccountUpdate) (*models.Account, error) {
	defer r.lock()()
	if u.Empty() {
		return nil, fmt.Errorf("%w: empty update", common.ErrorValidation)
	}
	return r.mutate(id, func(a *models.Account) error {
		if u.Name != nil {
			a.Name = *u.Name
		}
		if u.Email != nil {
			a.Email = *u.Email
		}
		if u.PasswordHash != nil {
			a.PasswordHash = *u.PasswordHash
		}
		if u.AvatarURL != nil {
			a.AvatarURL = *u.AvatarURL
		}
		if r.conflicts(*a) {
			return fmt.Errorf("%w: duplicate", common.ErrorAlreadyExists)
		}
		return nil
	})
}

func (r *memAccounts) SetActive(_ context.Context, id string, active bool) (*models.Account, error) {
	defer r.lock()()
	return r.mutate(id, func(a *models.Account) error { a.IsActive = active; return nil })
}

func (r *memAccounts) SetBanned(_ context.Context, id string, banned bool) (*models.Account, error) {
	defer r.lock()()
	return r.mutate(id, func(a *models.Account) error { a.IsBanned = banned; return nil })
}

func (r *memAccounts) MarkEmailVerified(_ context.Context, id string) (*models.Account, error) {
	defer r.lock()()
	return r.mutate(id, func(a *models.Account) error { a.IsEmailVerified = true; return nil })
}

func (r *memAccounts) UpdatePassword(_ context.Context, id string, hash string) error {
	defer r.lock()()
	_, err := r.mutate(id, func(a *models.Account) error { a.PasswordHash = hash; return nil })
	return err
}

func (r *memAccounts) Delete(_ context.Context, id string) error {
	defer r.lock()()
	if _, ok := r.s.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.accounts, id)
	for _, m := range r.s.tokens {
		for k, e := range m {
			if e.UserID == id {
				delete(m, k)
			}
		}
	}
	return nil
}

type memTokens struct {
	s    *memStore
	inTx bool
}

func (r *memTokens) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *memTokens) Create(_ context.Context, kind models.TokenKind, userID, token string, expiresAt time.Time) error {
	defer r.lock()()
	m, ok := r.s.tokens[kind]
	if !ok {
		return ephemeraltokens.ErrUnknownKind
	}
	if _, dup := m[token]; dup {
		return fmt.Errorf("%w: duplicate token", common.ErrorAlreadyExists)
	}
	r.s.seq++
	m[token] = models.EphemeralToken{
		ID:        fmt.Sprintf("tok-%d", r.s.seq),
		UserID:    userID,
		Token:     token,
		Expires:   expiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *memTokens) FindValid(_ context.Context, kind models.TokenKind, token string, now time.Time) (*models.EphemeralToken, error) {
	defer r.lock()()
	e, ok := r.s.tokens[kind][token]
	if !ok || !e.ValidAt(now) {
		return nil, common.ErrorNotFound
	}
	return &e, nil
}

func (r *memTokens) Delete(_ context.Context, kind models.TokenKind, token string) (bool, error) {
	defer r.lock()()
	if r.s.failDeleteToken != nil {
		return false, r.s.failDeleteToken
	}
	if _, ok := r.s.tokens[kind][token]; !ok {
		return false, nil
	}
	delete(r.s.tokens[kind], token)
	return true, nil
}

func (r *memTokens) DeleteExpired(_ context.Context, kind models.TokenKind, now time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for k, e := range r.s.tokens[kind] {
		if !e.ValidAt(now) {
			delete(r.s.tokens[kind], k)
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	kind string
	to   string
	link string
}

// fakeMailer records what would have been sent. err fails verification and
// reset sends; welcomeErr fails only welcome sends.
type fakeMailer struct {
	mu         sync.Mutex
	sent       []sentMail
	err        error
	welcomeErr error
	welcomed   chan string
}

func (m *fakeMailer) record(kind, to, link string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.sent = append(m.sent, sentMail{kind: kind, to: to, link: link})
	return nil
}

func (m *fakeMailer) SendVerification(_ context.Context, to, _, link string) error {
	return m.record("verification", to, link, m.err)
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, _, link string) error {
	return m.record("reset", to, link, m.err)
}

func (m *fakeMailer) SendWelcome(_ context.Context, to, _ string) error {
	err := m.record("welcome", to, "", m.welcomeErr)
	if m.welcomed != nil {
		m.welcomed <- to
	}
	return err
}

func (m *fakeMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

func (m *fakeMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

// secretFromLink pulls the token query parameter out of an emailed link.
func secretFromLink(link string) string {
	_, after, _ := strings.Cut(link, "?token=")
	return after
}
