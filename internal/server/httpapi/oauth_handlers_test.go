package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startOAuth runs the start endpoint and returns the state and the cookie
// the browser would carry to the callback.
func startOAuth(t *testing.T, e *testEnv, provider string) (string, *http.Cookie) {
	t.Helper()
	rec, _ := e.do(t, http.MethodGet, "/api/auth/"+provider, "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, oauthCookie, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/api/auth/"+provider+"/callback", c.Path)
	return state, c
}

func callback(t *testing.T, e *testEnv, provider, query string, c *http.Cookie) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/"+provider+"/callback?"+query, nil)
	if c != nil {
		req.AddCookie(c)
	}
	return e.serve(t, req)
}

func TestOAuthCallback_Success(t *testing.T) {
	e := newEnv(t)
	e.google.profile = services.FederatedProfile{Provider: models.ProviderGoogle, ExternalID: "42", Email: "g@x.com", Name: "G"}
	var got services.FederatedProfile
	e.identity.federated = func(p services.FederatedProfile) (*models.Account, error) {
		got = p
		return &models.Account{ID: "g1", Provider: models.ProviderGoogle, ProviderID: "42", IsActive: true, IsEmailVerified: true}, nil
	}

	state, c := startOAuth(t, e, "google")
	rec, resp := callback(t, e, "google", "code=abc&state="+url.QueryEscape(state), c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OAuth login successful", resp.Message)
	assert.Equal(t, "42", got.ExternalID)
	assert.Equal(t, "abc", e.google.gotCode)
	assert.NotEmpty(t, e.google.gotVerifier)
	assert.Contains(t, string(resp.Data), "access-g1")
}

func TestOAuthCallback_StateChecks(t *testing.T) {
	e := newEnv(t)
	e.identity.federated = func(services.FederatedProfile) (*models.Account, error) {
		t.Fatal("identity must not be resolved")
		return nil, nil
	}
	state, c := startOAuth(t, e, "github")

	tests := []struct {
		name   string
		query  string
		cookie *http.Cookie
	}{
		{"no cookie", "code=abc&state=" + url.QueryEscape(state), nil},
		{"wrong state", "code=abc&state=forged", c},
		{"provider error", "error=access_denied&state=" + url.QueryEscape(state), c},
		{"no code", "state=" + url.QueryEscape(state), c},
		{"malformed cookie", "code=abc&state=x", &http.Cookie{Name: oauthCookie, Value: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := callback(t, e, "github", tt.query, tt.cookie)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, msgOAuthFailed, resp.Message)
		})
	}
}

func TestOAuthCallback_ResolutionErrors(t *testing.T) {
	tests := []struct {
		name       string
		provider   string
		exchange   error
		account    *models.Account
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"exchange fails", "google", common.ErrorUnauthorized, nil, nil,
			http.StatusUnauthorized, msgOAuthFailed},
		{"email conflict", "google", nil, nil, common.ErrEmailConflict,
			http.StatusUnauthorized, "Email already registered with different provider"},
		{"github without email", "github", nil, nil, common.ErrProviderEmailMissing,
			http.StatusUnauthorized, missingEmailMessages[models.ProviderGitHub]},
		{"banned", "github", nil, &models.Account{ID: "b", IsBanned: true, IsActive: true}, nil,
			http.StatusForbidden, "Your account has been banned"},
		{"inactive", "google", nil, &models.Account{ID: "i"}, nil,
			http.StatusForbidden, "Your account is inactive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.google.err, e.github.err = tt.exchange, tt.exchange
			e.identity.federated = func(services.FederatedProfile) (*models.Account, error) {
				return tt.account, tt.err
			}

			state, c := startOAuth(t, e, tt.provider)
			rec, resp := callback(t, e, tt.provider, "code=abc&state="+url.QueryEscape(state), c)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.False(t, resp.Success)
		})
	}
}

func TestOAuthDisabledProviderNotRouted(t *testing.T) {
	h := NewHandler(Deps{Sessions: &fakeSessions{}, DB: fakeDB{}})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
