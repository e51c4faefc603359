// Package httpapi is the JSON HTTP surface of the auth server. Every
// response uses the {success, message, data} envelope; protected routes take
// a bearer access token.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// Identity resolves local and federated callers to accounts.
type Identity interface {
	SignupLocal(ctx context.Context, name, email, password string) (*models.Account, error)
	LoginLocal(ctx context.Context, email, password string) (*models.Account, error)
	ResolveFederated(ctx context.Context, p services.FederatedProfile) (*models.Account, error)
}

// Tokens drives the email-verification and password-reset secrets.
type Tokens interface {
	VerifyEmail(ctx context.Context, secret string) (*models.Account, error)
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConsumeReset(ctx context.Context, secret, newPassword string) error
	ValidateReset(ctx context.Context, secret string) error
}

// Sessions issues session tokens and runs the session gate.
type Sessions interface {
	Issue(a *models.Account) (*auth.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*models.Account, error)
	AuthenticateOptional(ctx context.Context, accessToken string) *models.Account
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, *models.Account, error)
}

// Accounts covers profile edits and the admin operations.
type Accounts interface {
	UpdateProfile(ctx context.Context, current *models.Account, in services.ProfileUpdate) (*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Account, error)
	SetBanned(ctx context.Context, id string, banned bool) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// Avatars stores profile pictures.
type Avatars interface {
	Upload(ctx context.Context, a *models.Account, filename, contentType string, body io.Reader, size int64) (*models.Account, error)
}

// OAuthProvider is one federated identity provider.
type OAuthProvider interface {
	Name() models.Provider
	Enabled() bool
	AuthCodeURL(state, verifier string) string
	Resolve(ctx context.Context, code, verifier string) (services.FederatedProfile, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Providers that are not enabled
// get no routes.
type Deps struct {
	Identity  Identity
	Tokens    Tokens
	Sessions  Sessions
	Accounts  Accounts
	Avatars   Avatars
	Providers []OAuthProvider
	DB        Pinger
	Metrics   *metrics.Metrics
	Logger    logging.Logger

	// SecureCookies marks the OAuth state cookie Secure.
	SecureCookies bool
}

// Handler serves the JSON API.
type Handler struct {
	identity      Identity
	tokens        Tokens
	sessions      Sessions
	accounts      Accounts
	avatars       Avatars
	providers     map[models.Provider]OAuthProvider
	db            Pinger
	metrics       *metrics.Metrics
	logger        logging.Logger
	secureCookies bool
}

// NewHandler builds a Handler. A nil Logger or Metrics is replaced with a
// no-op logger or a fresh registry.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	h := &Handler{
		identity:      d.Identity,
		tokens:        d.Tokens,
		sessions:      d.Sessions,
		accounts:      d.Accounts,
		avatars:       d.Avatars,
		providers:     map[models.Provider]OAuthProvider{},
		db:            d.DB,
		metrics:       d.Metrics,
		logger:        d.Logger.With("module", "http"),
		secureCookies: d.SecureCookies,
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	for _, p := range d.Providers {
		if p.Enabled() {
			h.providers[p.Name()] = p
		}
	}
	return h
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", h.signup)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/refresh-token", h.refresh)
	mux.HandleFunc("GET /api/auth/verify-email", h.verifyEmail)
	mux.HandleFunc("POST /api/auth/resend-verification", h.resendVerification)
	mux.HandleFunc("POST /api/auth/request-password-reset", h.requestPasswordReset)
	mux.HandleFunc("GET /api/auth/reset-password", h.checkResetToken)
	mux.HandleFunc("POST /api/auth/reset-password", h.resetPassword)
	mux.Handle("GET /api/auth/me", h.authenticate(http.HandlerFunc(h.me)))
	mux.Handle("GET /api/auth/session", h.optionalAuthenticate(http.HandlerFunc(h.session)))

	for name := range h.providers {
		mux.HandleFunc("GET /api/auth/"+string(name), h.oauthStart(name))
		mux.HandleFunc("GET /api/auth/"+string(name)+"/callback", h.oauthCallback(name))
	}

	mux.Handle("PUT /api/user/profile-update", h.authenticate(http.HandlerFunc(h.updateProfile)))
	mux.Handle("POST /api/user/profile/picture", h.authenticate(http.HandlerFunc(h.uploadPicture)))

	admin := func(f http.HandlerFunc) http.Handler { return h.authenticate(h.requireAdmin(f)) }
	mux.Handle("PATCH /api/user/users/{userId}/active", admin(h.setActive))
	mux.Handle("PATCH /api/user/users/{userId}/ban", admin(h.setBanned))
	mux.Handle("DELETE /api/user/users/{userId}", admin(h.deleteUser))

	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", h.metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, "Route not found")
	})

	return h.requestLogger(mux)
}
