package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"syncup-api/core/config"
	"syncup-api/core/constants"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Profile is the identity a provider reports for the signed-in account.
type Profile struct {
	ID        string
	Username  string
	Email     string
	AvatarURL string
}

// OAuthProvider runs the authorization-code flow against one identity provider.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// NewProviders builds every provider that has credentials configured.
func NewProviders(cfg *config.Config) map[string]OAuthProvider {
	providers := make(map[string]OAuthProvider)
	if cfg.GitHub.Configured() {
		providers[constants.OAuthProviderGitHub] = NewGitHubProvider(cfg.GitHub)
	}
	if cfg.GoogleAPI.Configured() {
		providers[constants.OAuthProviderGoogle] = NewGoogleProvider(cfg.GoogleAPI)
	}
	return providers
}

// ===================== GitHub =====================

const githubAPIURL = "https://api.github.com"

type GitHubProvider struct {
	Config *oauth2.Config
	APIURL string
}

func NewGitHubProvider(cfg config.OAuthConfig) *GitHubProvider {
	return &GitHubProvider{
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		APIURL: githubAPIURL,
	}
}

func (p *GitHubProvider) Name() string {
	return constants.OAuthProviderGitHub
}

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state)
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.Config.Exchange(ctx, code)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile reads /user, falling back to /user/emails when the public
// email is hidden.
func (p *GitHubProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := p.Config.Client(ctx, token)

	var user githubUser
	if err := getJSON(ctx, client, strings.TrimRight(p.APIURL, "/")+"/user", &user); err != nil {
		return nil, fmt.Errorf("github user: %w", err)
	}
	if user.ID == 0 || user.Login == "" {
		return nil, fmt.Errorf("github user: incomplete profile")
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, strings.TrimRight(p.APIURL, "/")+"/user/emails", &emails); err == nil {
			email = primaryEmail(emails)
		}
	}

	return &Profile{
		ID:        strconv.FormatInt(user.ID, 10),
		Username:  user.Login,
		Email:     email,
		AvatarURL: user.AvatarURL,
	}, nil
}

func primaryEmail(emails []githubEmail) string {
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

// ===================== Google =====================

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleProvider struct {
	Config      *oauth2.Config
	UserInfoURL string
}

func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	return &GoogleProvider{
		Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		UserInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) Name() string {
	return constants.OAuthProviderGoogle
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.Config.Exchange(ctx, code)
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (p *GoogleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	var info googleUserInfo
	if err := getJSON(ctx, p.Config.Client(ctx, token), p.UserInfoURL, &info); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("google userinfo: incomplete profile")
	}

	username := info.Name
	if username == "" {
		username, _, _ = strings.Cut(info.Email, "@")
	}

	return &Profile{
		ID:        info.ID,
		Username:  username,
		Email:     info.Email,
		AvatarURL: info.Picture,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
