package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	signup    func(name, email, password string) (*models.Account, error)
	login     func(email, password string) (*models.Account, error)
	federated func(p services.FederatedProfile) (*models.Account, error)
}

func (f *fakeIdentity) SignupLocal(_ context.Context, name, email, password string) (*models.Account, error) {
	return f.signup(name, email, password)
}

func (f *fakeIdentity) LoginLocal(_ context.Context, email, password string) (*models.Account, error) {
	return f.login(email, password)
}

func (f *fakeIdentity) ResolveFederated(_ context.Context, p services.FederatedProfile) (*models.Account, error) {
	return f.federated(p)
}

type fakeTokens struct {
	verifyErr  error
	resendErr  error
	requestErr error
	consumeErr error
	validErr   error

	consumed []string
}

func (f *fakeTokens) VerifyEmail(_ context.Context, secret string) (*models.Account, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &models.Account{ID: "u1", IsEmailVerified: true, IsActive: true}, nil
}

func (f *fakeTokens) ResendVerification(context.Context, string) error   { return f.resendErr }
func (f *fakeTokens) RequestPasswordReset(context.Context, string) error { return f.requestErr }
func (f *fakeTokens) ValidateReset(context.Context, string) error        { return f.validErr }

func (f *fakeTokens) ConsumeReset(_ context.Context, secret, _ string) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed = append(f.consumed, secret)
	return nil
}

// fakeSessions admits the accounts in byToken; any other token is
// rejected as invalid.
type fakeSessions struct {
	byToken map[string]*models.Account
	errs    map[string]error
}

func (f *fakeSessions) Issue(a *models.Account) (*auth.TokenPair, error) {
	return &auth.TokenPair{AccessToken: "access-" + a.ID, RefreshToken: "refresh-" + a.ID}, nil
}

func (f *fakeSessions) Authenticate(_ context.Context, token string) (*models.Account, error) {
	if err, ok := f.errs[token]; ok {
		return nil, err
	}
	if a, ok := f.byToken[token]; ok {
		return a, nil
	}
	return nil, common.ErrTokenSignatureInvalid
}

func (f *fakeSessions) AuthenticateOptional(ctx context.Context, token string) *models.Account {
	a, err := f.Authenticate(ctx, token)
	if err != nil {
		return nil
	}
	return a
}

func (f *fakeSessions) Refresh(ctx context.Context, token string) (*auth.TokenPair, *models.Account, error) {
	a, err := f.Authenticate(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	pair, _ := f.Issue(a)
	return pair, a, nil
}

type fakeAccounts struct {
	update  func(current *models.Account, in services.ProfileUpdate) (*models.Account, error)
	active  map[string]bool
	banned  map[string]bool
	deleted []string
	err     error
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, current *models.Account, in services.ProfileUpdate) (*models.Account, error) {
	return f.update(current, in)
}

func (f *fakeAccounts) SetActive(_ context.Context, id string, active bool) (*models.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.active[id] = active
	return &models.Account{ID: id, IsActive: active}, nil
}

func (f *fakeAccounts) SetBanned(_ context.Context, id string, banned bool) (*models.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.banned[id] = banned
	return &models.Account{ID: id, IsBanned: banned}, nil
}

func (f *fakeAccounts) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeAvatars struct {
	contentType string
	body        []byte
}

func (f *fakeAvatars) Upload(_ context.Context, a *models.Account, filename, contentType string, body io.Reader, _ int64) (*models.Account, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.contentType, f.body = contentType, b
	cp := *a
	cp.AvatarURL = "http://blobs/" + filename
	return &cp, nil
}

type fakeProvider struct {
	name    models.Provider
	profile services.FederatedProfile
	err     error

	gotCode, gotVerifier string
}

func (p *fakeProvider) Name() models.Provider { return p.name }
func (p *fakeProvider) Enabled() bool         { return true }

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://idp.test/authorize?state=" + state
}

func (p *fakeProvider) Resolve(_ context.Context, code, verifier string) (services.FederatedProfile, error) {
	p.gotCode, p.gotVerifier = code, verifier
	return p.profile, p.err
}

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

type testEnv struct {
	identity *fakeIdentity
	tokens   *fakeTokens
	sessions *fakeSessions
	accounts *fakeAccounts
	avatars  *fakeAvatars
	google   *fakeProvider
	github   *fakeProvider
	db       *fakeDB
	metrics  *metrics.Metrics
	handler  http.Handler
}

var (
	alice = &models.Account{ID: "u1", Name: "Alice", Email: "alice@x.com", Provider: models.ProviderLocal, IsActive: true}
	admin = &models.Account{ID: "a1", Name: "Root", Email: "root@x.com", Provider: models.ProviderLocal, IsActive: true, IsAdmin: true}
)

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		identity: &fakeIdentity{},
		tokens:   &fakeTokens{},
		sessions: &fakeSessions{
			byToken: map[string]*models.Account{"alice-token": alice, "admin-token": admin},
			errs: map[string]error{
				"banned-token":   common.ErrAccountBanned,
				"inactive-token": common.ErrAccountInactive,
				"ghost-token":    common.ErrSessionAccountMissing,
				"expired-token":  common.ErrTokenExpired,
			},
		},
		accounts: &fakeAccounts{active: map[string]bool{}, banned: map[string]bool{}},
		avatars:  &fakeAvatars{},
		google:   &fakeProvider{name: models.ProviderGoogle},
		github:   &fakeProvider{name: models.ProviderGitHub},
		db:       &fakeDB{},
		metrics:  metrics.New(),
	}
	h := NewHandler(Deps{
		Identity:  e.identity,
		Tokens:    e.tokens,
		Sessions:  e.sessions,
		Accounts:  e.accounts,
		Avatars:   e.avatars,
		Providers: []OAuthProvider{e.google, e.github},
		DB:        e.db,
		Metrics:   e.metrics,
	})
	e.handler = h.Routes()
	return e
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}
