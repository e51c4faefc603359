package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func githubProfile(ctx context.Context, p *Provider, client *http.Client) (services.FederatedProfile, error) {
	var u githubUser
	if err := getJSON(ctx, client, p.apiBase+"/user", &u); err != nil {
		return services.FederatedProfile{}, err
	}
	if u.ID == 0 {
		return services.FederatedProfile{}, fmt.Errorf("%w: github user without id", ErrExchange)
	}

	email := u.Email
	if email == "" {
		// Private emails are only visible through /user/emails.
		var emails []githubEmail
		if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err != nil {
			return services.FederatedProfile{}, err
		}
		email = pickGitHubEmail(emails)
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}

	return services.FederatedProfile{
		Provider:   p.name,
		ExternalID: strconv.FormatInt(u.ID, 10),
		Email:      email,
		Name:       name,
		AvatarURL:  u.AvatarURL,
	}, nil
}

// pickGitHubEmail prefers the verified primary address, then any verified one.
func pickGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
