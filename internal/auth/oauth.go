package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubAccount is the portion of the GitHub /user API response we care
// about. GitHub returns a much larger object — we only unmarshal the fields
// we need.
type GitHubAccount struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID — stable, never changes
	Login     string `json:"login"`      // GitHub username, e.g. "sakif"
	AvatarURL string `json:"avatar_url"` // Profile picture URL
}

// GitHubLink is the result of a completed OAuth flow: the account identity
// plus the access token we store on the user so the git bridge can push and
// pull their repositories.
type GitHubLink struct {
	Account     GitHubAccount
	AccessToken string
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization
// Code flow.
//
// This is NOT a login mechanism — users sign in with email and password.
// The OAuth flow here links a GitHub account to an existing user so the
// server can clone, push, and pull their repositories on their behalf.
//
// FLOW:
// 1. An authenticated user hits /api/github/connect and is redirected to
//    GitHub's authorization page with our ClientID and scopes.
// 2. The user approves; GitHub redirects back to the callback URL with a
//    short-lived code.
// 3. The server exchanges the code for an access token (server-to-server,
//    using the ClientSecret — the token never touches the browser).
// 4. The server fetches the account identity and stores token + username
//    on the user record.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// Register an OAuth App at github.com/settings/developers; callbackURL must
// match the configured "Authorization callback URL" exactly.
//
// Scopes we request:
//   - "repo" — read/write access to repositories, required for clone, push
//     and pull over HTTPS
//   - "read:user" — the user's public profile (ID, login, avatar)
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"repo", "read:user"},
			Endpoint:     github.Endpoint,
		},
	}
}

// Configured reports whether OAuth credentials were provided. When they
// weren't, the connect endpoints respond with an explanatory error instead
// of redirecting to a broken GitHub URL.
func (p *GitHubProvider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// The state is a random string stored in a cookie before redirecting; the
// callback verifies the returned state matches. This prevents CSRF attacks
// where an attacker tricks a browser into completing an OAuth flow for the
// attacker's account.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for an
// access token and the GitHub account it belongs to.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubLink, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var account GitHubAccount
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if account.ID == 0 || account.Login == "" {
		return nil, fmt.Errorf("auth: GitHub returned an invalid account")
	}

	return &GitHubLink{
		Account:     account,
		AccessToken: oauthToken.AccessToken,
	}, nil
}
