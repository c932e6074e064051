// Package auth configures the OAuth 2.0 flow against the X platform.
// The handshake, PKCE and token exchange are delegated entirely to
// golang.org/x/oauth2; this package only pins endpoints and scopes.
package auth

import "golang.org/x/oauth2"

// Endpoint is the X platform's OAuth 2.0 endpoint pair. Client
// credentials go in the Authorization header on the token exchange.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// DefaultScopes cover reading the profile and bookmarks plus
// offline.access so a refresh token is issued.
var DefaultScopes = []string{"tweet.read", "users.read", "bookmark.read", "bookmark.write", "offline.access"}

// Config holds the registered app credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuthConfig builds the oauth2.Config used by the login handlers and
// the upstream client's token refresh.
func OAuthConfig(cfg Config) *oauth2.Config {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     Endpoint,
	}
}
