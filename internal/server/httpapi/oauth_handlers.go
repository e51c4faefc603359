package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/oauth"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const (
	oauthCookie    = "gophauth_oauth"
	oauthCookieTTL = 600
	msgOAuthFailed = "OAuth authentication failed"
)

var missingEmailMessages = map[models.Provider]string{
	models.ProviderGoogle: "Google account did not share an email address.",
	models.ProviderGitHub: "GitHub account must have a public email address. Update your GitHub email privacy settings and try again.",
}

func callbackPath(name models.Provider) string {
	return "/api/auth/" + string(name) + "/callback"
}

// oauthStart redirects the browser to the provider's consent page. The
// state and PKCE verifier ride in a short-lived cookie scoped to the
// callback.
func (h *Handler) oauthStart(name models.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := h.providers[name]
		state, verifier := oauth.NewVerifier(), oauth.NewVerifier()

		http.SetCookie(w, &http.Cookie{
			Name:     oauthCookie,
			Value:    state + "." + verifier,
			Path:     callbackPath(name),
			MaxAge:   oauthCookieTTL,
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, p.AuthCodeURL(state, verifier), http.StatusFound)
	}
}

func (h *Handler) oauthCallback(name models.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := h.providers[name]

		http.SetCookie(w, &http.Cookie{
			Name:     oauthCookie,
			Path:     callbackPath(name),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookies,
		})

		verifier, ok := checkState(r)
		q := r.URL.Query()
		if !ok || q.Get("error") != "" || q.Get("code") == "" {
			h.metrics.RecordAuth("oauth_"+string(name), common.ErrorUnauthorized)
			h.logger.Warn(r.Context(), "oauth callback rejected", "provider", name, "error", q.Get("error"))
			writeFail(w, http.StatusUnauthorized, msgOAuthFailed)
			return
		}

		profile, err := p.Resolve(r.Context(), q.Get("code"), verifier)
		if err != nil {
			h.metrics.RecordAuth("oauth_"+string(name), err)
			h.logger.Warn(r.Context(), "oauth exchange failed", "provider", name, "error", err)
			writeFail(w, http.StatusUnauthorized, msgOAuthFailed)
			return
		}

		account, err := h.identity.ResolveFederated(r.Context(), profile)
		if err == nil {
			err = services.CheckStanding(account)
		}
		h.metrics.RecordAuth("oauth_"+string(name), err)
		if err != nil {
			h.writeOAuthError(w, r, name, err)
			return
		}
		h.issueSession(w, r, http.StatusOK, "OAuth login successful", account)
	}
}

// checkState matches the state parameter against the cookie set by
// oauthStart and returns the PKCE verifier.
func checkState(r *http.Request) (string, bool) {
	c, err := r.Cookie(oauthCookie)
	if err != nil {
		return "", false
	}
	state, verifier, ok := strings.Cut(c.Value, ".")
	if !ok || state == "" || verifier == "" {
		return "", false
	}
	got := r.URL.Query().Get("state")
	if subtle.ConstantTimeCompare([]byte(state), []byte(got)) != 1 {
		return "", false
	}
	return verifier, true
}

func (h *Handler) writeOAuthError(w http.ResponseWriter, r *http.Request, name models.Provider, err error) {
	switch {
	case errors.Is(err, common.ErrEmailConflict):
		writeFail(w, http.StatusUnauthorized, "Email already registered with different provider")
	case errors.Is(err, common.ErrProviderEmailMissing):
		writeFail(w, http.StatusUnauthorized, missingEmailMessages[name])
	case errors.Is(err, common.ErrAccountBanned):
		writeFail(w, http.StatusForbidden, "Your account has been banned")
	case errors.Is(err, common.ErrAccountInactive):
		writeFail(w, http.StatusForbidden, "Your account is inactive")
	case common.KindOf(err) == common.KindValidation:
		writeFail(w, http.StatusUnauthorized, msgOAuthFailed)
	default:
		h.writeError(w, r, err)
	}
}
