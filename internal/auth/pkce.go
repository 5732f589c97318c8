package auth

import (
	"golang.org/x/oauth2"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

// Scopes requested at login.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserReadPrivate,
}

// Endpoint is the Spotify accounts service. Public clients send the client id in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   spotifyauth.AuthURL,
	TokenURL:  spotifyauth.TokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// GenerateVerifier returns a new code verifier: 32 random bytes, base64url encoded without padding.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// DeriveChallenge returns the S256 challenge for verifier.
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// BuildAuthorizationURL returns the authorization endpoint URL for a PKCE login.
//
// The consent dialog is always shown so a different account can be picked.
func BuildAuthorizationURL(clientID, redirectURI string, scopes []string, challenge string) string {
	return buildAuthorizationURL(Endpoint, clientID, redirectURI, scopes, challenge)
}

func buildAuthorizationURL(endpoint oauth2.Endpoint, clientID, redirectURI string, scopes []string, challenge string) string {
	cfg := oauthConfig(endpoint, clientID, redirectURI, scopes)
	return cfg.AuthCodeURL("",
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("show_dialog", "true"),
	)
}

func oauthConfig(endpoint oauth2.Endpoint, clientID, redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      scopes,
		Endpoint:    endpoint,
	}
}
