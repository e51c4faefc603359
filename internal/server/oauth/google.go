package oauth

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

func googleProfile(ctx context.Context, p *Provider, client *http.Client) (services.FederatedProfile, error) {
	var info googleUserInfo
	if err := getJSON(ctx, client, p.apiBase+"/oauth2/v3/userinfo", &info); err != nil {
		return services.FederatedProfile{}, err
	}

	email := info.Email
	if !info.EmailVerified {
		email = ""
	}
	return services.FederatedProfile{
		Provider:   p.name,
		ExternalID: info.Sub,
		Email:      email,
		Name:       info.Name,
		AvatarURL:  info.Picture,
	}, nil
}
