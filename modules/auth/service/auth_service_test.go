package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"syncup-api/core/config"
	"syncup-api/core/constants"
	"syncup-api/core/errors"
	"syncup-api/core/utils"
	"syncup-api/internal/testutil"
	"syncup-api/modules/auth/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memoryAuthRepo struct {
	mu     sync.Mutex
	users  map[string]*entity.User
	states map[string]*entity.OAuthState
}

func newMemoryAuthRepo() *memoryAuthRepo {
	return &memoryAuthRepo{users: make(map[string]*entity.User), states: make(map[string]*entity.OAuthState)}
}

func (r *memoryAuthRepo) UpsertUser(_ context.Context, user *entity.User) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := user.Provider + ":" + user.ProviderUserID
	saved, ok := r.users[key]
	if !ok {
		saved = &entity.User{}
		saved.ID = uuid.New()
		saved.CreatedAt = time.Now()
		r.users[key] = saved
	}
	saved.Provider, saved.ProviderUserID = user.Provider, user.ProviderUserID
	saved.Username, saved.Email, saved.AvatarURL = user.Username, user.Email, user.AvatarURL
	copied := *saved
	return &copied, nil
}

func (r *memoryAuthRepo) GetUserByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memoryAuthRepo) SaveOAuthState(_ context.Context, state *entity.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *state
	r.states[state.State] = &copied
	return nil
}

func (r *memoryAuthRepo) ConsumeOAuthState(_ context.Context, state string) (*entity.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved, ok := r.states[state]
	if !ok {
		return nil, nil
	}
	delete(r.states, state)
	return saved, nil
}

func (r *memoryAuthRepo) CleanupExpiredOAuthStates(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for k, s := range r.states {
		if s.Expired(time.Now()) {
			delete(r.states, k)
			removed++
		}
	}
	return removed, nil
}

type fakeProvider struct {
	profile *Profile
}

func (p *fakeProvider) Name() string { return constants.OAuthProviderGitHub }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://github.example/login/oauth/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "gh-" + code}, nil
}

func (p *fakeProvider) FetchProfile(context.Context, *oauth2.Token) (*Profile, error) {
	return p.profile, nil
}

func newAuthService(t *testing.T) (*AuthService, *memoryAuthRepo, *testutil.MemoryBroker) {
	t.Helper()
	repo := newMemoryAuthRepo()
	broker := testutil.NewMemoryBroker()
	providers := map[string]OAuthProvider{
		constants.OAuthProviderGitHub: &fakeProvider{profile: &Profile{ID: "42", Username: "octocat", Email: "octo@example.com"}},
	}
	svc := NewAuthService(repo, broker, providers, config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour})
	return svc, repo, broker
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestSanitizeReturnTo(t *testing.T) {
	assert.Equal(t, "/events/abc", SanitizeReturnTo("/events/abc"))
	assert.Equal(t, "/", SanitizeReturnTo(""))
	assert.Equal(t, "/", SanitizeReturnTo("https://evil.example"))
	assert.Equal(t, "/", SanitizeReturnTo("//evil.example"))
	assert.Equal(t, "/", SanitizeReturnTo("/\\evil.example"))
}

func TestGetAuthURL_UnsupportedProvider(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, appErr := svc.GetAuthURL(context.Background(), "gitlab", "/")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrUnsupportedProvider, appErr.Code)
	assert.Equal(t, []string{"github"}, svc.Providers())
}

func TestHandleCallback(t *testing.T) {
	svc, repo, _ := newAuthService(t)
	ctx := context.Background()

	authURL, appErr := svc.GetAuthURL(ctx, "GitHub", "/events/abc")
	require.Nil(t, appErr)
	state := stateFrom(t, authURL)

	result, appErr := svc.HandleCallback(ctx, "github", "code-1", state)
	require.Nil(t, appErr)
	assert.Equal(t, "/events/abc", result.ReturnTo)
	assert.Equal(t, "octocat", result.User.Username)
	assert.Equal(t, "github", result.User.AuthProvider)

	claims, appErr := svc.ValidateSessionToken(ctx, result.Token)
	require.Nil(t, appErr)
	assert.Equal(t, "octocat", claims.Username)
	assert.Equal(t, "octo@example.com", claims.Email)

	me, appErr := svc.GetMe(ctx, claims)
	require.Nil(t, appErr)
	assert.Equal(t, "octocat", me.Username)

	// state is single-use
	_, appErr = svc.HandleCallback(ctx, "github", "code-1", state)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)
	assert.Len(t, repo.users, 1)
}

func TestHandleCallback_ExpiredState(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	authURL, appErr := svc.GetAuthURL(ctx, "github", "/")
	require.Nil(t, appErr)

	svc.now = func() time.Time { return time.Now().Add(constants.OAuthStateTTL + time.Minute) }
	_, appErr = svc.HandleCallback(ctx, "github", "code", stateFrom(t, authURL))
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)
}

func TestHandleCallback_MissingCode(t *testing.T) {
	svc, _, _ := newAuthService(t)

	_, appErr := svc.HandleCallback(context.Background(), "github", "", "state")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidInput, appErr.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, broker := newAuthService(t)
	ctx := context.Background()

	token, err := utils.GenerateToken("test-secret", time.Hour, utils.TokenClaims{
		UserID: uuid.New(), Username: "octocat", Scope: constants.ScopeTokenAccess,
	})
	require.NoError(t, err)

	_, appErr := svc.ValidateSessionToken(ctx, token)
	require.Nil(t, appErr)

	require.Nil(t, svc.Logout(ctx, token))
	blacklisted, err := broker.IsTokenBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	_, appErr = svc.ValidateSessionToken(ctx, token)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrUnauthorized, appErr.Code)

	assert.Nil(t, svc.Logout(ctx, "garbage"))
}

func TestValidateSessionToken_Errors(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, appErr := svc.ValidateSessionToken(ctx, "not-a-jwt")
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrInvalidTokenFormat, appErr.Code)

	expired, err := utils.GenerateToken("test-secret", -time.Minute, utils.TokenClaims{Scope: constants.ScopeTokenAccess})
	require.NoError(t, err)
	_, appErr = svc.ValidateSessionToken(ctx, expired)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.ErrTokenExpired, appErr.Code)

	wrongScope, err := utils.GenerateToken("test-secret", time.Hour, utils.TokenClaims{Scope: "refresh"})
	require.NoError(t, err)
	_, appErr = svc.ValidateSessionToken(ctx, wrongScope)
	require.NotNil(t, appErr)
}

func TestCleanupExpiredStates(t *testing.T) {
	svc, repo, _ := newAuthService(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveOAuthState(ctx, &entity.OAuthState{State: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, repo.SaveOAuthState(ctx, &entity.OAuthState{State: "new", ExpiresAt: time.Now().Add(time.Minute)}))

	removed, appErr := svc.CleanupExpiredStates(ctx)
	require.Nil(t, appErr)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, repo.states, 1)
}
