package gmailapi

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// GoogleRefresher implements TokenRefresher against Google's token endpoint.
type GoogleRefresher struct {
	cfg *oauth2.Config
}

func NewGoogleRefresher(clientID, clientSecret string) *GoogleRefresher {
	return &GoogleRefresher{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailReadonlyScope},
		},
	}
}

// Refresh exchanges the refresh token for a new access token.
// Google may rotate the refresh token; the returned value carries whichever
// refresh token is current.
func (r *GoogleRefresher) Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error) {
	src := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	return &RefreshedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}
