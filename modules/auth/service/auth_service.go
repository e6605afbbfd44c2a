package service

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"syncup-api/core/config"
	"syncup-api/core/constants"
	"syncup-api/core/errors"
	"syncup-api/core/logger"
	"syncup-api/core/utils"
	"syncup-api/modules/auth/dto"
	"syncup-api/modules/auth/entity"
	"syncup-api/modules/auth/repository"
	"time"
)

// TokenBlacklist revokes session tokens before they expire.
type TokenBlacklist interface {
	AddToTokenBlacklist(ctx context.Context, token string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

type AuthServiceInterface interface {
	Providers() []string
	GetAuthURL(ctx context.Context, provider, returnTo string) (string, *errors.AppError)
	HandleCallback(ctx context.Context, provider, code, state string) (*dto.LoginResult, *errors.AppError)
	GetMe(ctx context.Context, claims *utils.TokenClaims) (*dto.MeResponse, *errors.AppError)
	Logout(ctx context.Context, token string) *errors.AppError
	ValidateSessionToken(ctx context.Context, token string) (*utils.TokenClaims, *errors.AppError)
	CleanupExpiredStates(ctx context.Context) (int64, *errors.AppError)
}

type AuthService struct {
	repo       repository.AuthRepositoryInterface
	blacklist  TokenBlacklist
	providers  map[string]OAuthProvider
	secret     string
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(repo repository.AuthRepositoryInterface, blacklist TokenBlacklist, providers map[string]OAuthProvider, jwtCfg config.JWTConfig) *AuthService {
	ttl := jwtCfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = constants.DefaultSessionTTL
	}
	return &AuthService{
		repo:       repo,
		blacklist:  blacklist,
		providers:  providers,
		secret:     jwtCfg.Secret,
		sessionTTL: ttl,
		now:        time.Now,
	}
}

// Providers lists the configured provider names.
func (service *AuthService) Providers() []string {
	names := make([]string, 0, len(service.providers))
	for name := range service.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (service *AuthService) provider(name string) (OAuthProvider, *errors.AppError) {
	p, ok := service.providers[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewAppError(errors.ErrUnsupportedProvider, "Unsupported or unconfigured OAuth provider: "+name, nil)
	}
	return p, nil
}

// SanitizeReturnTo keeps only same-site absolute paths so the callback cannot
// be turned into an open redirect.
func SanitizeReturnTo(returnTo string) string {
	returnTo = strings.TrimSpace(returnTo)
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.ContainsAny(returnTo, "\\\r\n") {
		return "/"
	}
	return returnTo
}

// GetAuthURL stores a one-time state and returns the provider's consent URL.
func (service *AuthService) GetAuthURL(ctx context.Context, providerName, returnTo string) (string, *errors.AppError) {
	p, appErr := service.provider(providerName)
	if appErr != nil {
		return "", appErr
	}

	state := &entity.OAuthState{
		State:     utils.GenerateRandomString(constants.OAuthStateLength),
		Provider:  p.Name(),
		ReturnTo:  SanitizeReturnTo(returnTo),
		ExpiresAt: service.now().Add(constants.OAuthStateTTL),
	}
	if err := service.repo.SaveOAuthState(ctx, state); err != nil {
		logger.Error("AuthService:GetAuthURL:SaveOAuthState", "provider", p.Name(), "error", err)
		return "", errors.NewAppError(errors.ErrInternalServer, "Failed to store state token", err)
	}

	logger.Info("AuthService:GetAuthURL:StateStored", "provider", p.Name(), "expires_at", state.ExpiresAt)
	return p.AuthCodeURL(state.State), nil
}

// HandleCallback validates the state, exchanges the code, upserts the user and
// signs a session token.
func (service *AuthService) HandleCallback(ctx context.Context, providerName, code, state string) (*dto.LoginResult, *errors.AppError) {
	p, appErr := service.provider(providerName)
	if appErr != nil {
		return nil, appErr
	}
	if code == "" || state == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Missing code or state", nil)
	}

	saved, err := service.repo.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to validate state token", err)
	}
	if saved == nil || saved.Expired(service.now()) || saved.Provider != p.Name() {
		logger.Warn("AuthService:HandleCallback:InvalidState", "provider", p.Name())
		return nil, errors.NewAppError(errors.ErrUnauthorized, "Invalid or expired state token", nil)
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		logger.Error("AuthService:HandleCallback:Exchange", "provider", p.Name(), "error", err)
		return nil, errors.NewAppError(errors.ErrUnauthorized, "Failed to exchange authorization code", err)
	}

	profile, err := p.FetchProfile(ctx, token)
	if err != nil {
		logger.Error("AuthService:HandleCallback:FetchProfile", "provider", p.Name(), "error", err)
		return nil, errors.NewAppError(errors.ErrServiceUnavailable, "Failed to fetch user profile", err)
	}

	user, err := service.repo.UpsertUser(ctx, &entity.User{
		Provider:       p.Name(),
		ProviderUserID: profile.ID,
		Username:       profile.Username,
		Email:          profile.Email,
		AvatarURL:      profile.AvatarURL,
	})
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to save user", err)
	}

	signed, err := utils.GenerateToken(service.secret, service.sessionTTL, utils.TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Provider: user.Provider,
		Scope:    constants.ScopeTokenAccess,
	})
	if err != nil {
		logger.Error("AuthService:HandleCallback:GenerateToken", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to generate session token", err)
	}

	logger.Info("AuthService:HandleCallback:SignedIn", "provider", user.Provider, "user_id", user.ID)
	return &dto.LoginResult{
		Token:     signed,
		ExpiresAt: service.now().Add(service.sessionTTL),
		ReturnTo:  saved.ReturnTo,
		User:      toMe(user.Provider, user.Username, user.Email),
	}, nil
}

func (service *AuthService) GetMe(ctx context.Context, claims *utils.TokenClaims) (*dto.MeResponse, *errors.AppError) {
	if claims == nil {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "User not authenticated", nil)
	}

	user, err := service.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load user", err)
	}
	if user == nil {
		// Deleted accounts keep working until the token expires.
		me := toMe(claims.Provider, claims.Username, claims.Email)
		return &me, nil
	}

	me := toMe(user.Provider, user.Username, user.Email)
	return &me, nil
}

// Logout revokes token for the rest of its lifetime.
func (service *AuthService) Logout(ctx context.Context, token string) *errors.AppError {
	claims, err := utils.ValidateAndParseToken(service.secret, token)
	if err != nil {
		// Expired or malformed tokens are already unusable.
		return nil
	}
	if err := service.blacklist.AddToTokenBlacklist(ctx, token, claims.RemainingTTL()); err != nil {
		logger.Error("AuthService:Logout:AddToTokenBlacklist", "error", err)
		return errors.NewAppError(errors.ErrServiceUnavailable, "Failed to revoke session", err)
	}
	return nil
}

func (service *AuthService) ValidateSessionToken(ctx context.Context, token string) (*utils.TokenClaims, *errors.AppError) {
	claims, err := utils.ValidateAndParseToken(service.secret, token)
	if err != nil {
		if stderrors.Is(err, utils.ErrTokenExpired) {
			return nil, errors.NewAppError(errors.ErrTokenExpired, "Session expired", err)
		}
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "Invalid session token", err)
	}
	if claims.Scope != constants.ScopeTokenAccess {
		return nil, errors.NewAppError(errors.ErrInvalidTokenFormat, "Invalid session token", nil)
	}

	blacklisted, err := service.blacklist.IsTokenBlacklisted(ctx, token)
	if err != nil {
		logger.Error("AuthService:ValidateSessionToken:IsTokenBlacklisted", "error", err)
		return nil, errors.NewAppError(errors.ErrServiceUnavailable, "Failed to check session", err)
	}
	if blacklisted {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "Session revoked", nil)
	}
	return claims, nil
}

func (service *AuthService) CleanupExpiredStates(ctx context.Context) (int64, *errors.AppError) {
	removed, err := service.repo.CleanupExpiredOAuthStates(ctx)
	if err != nil {
		return 0, errors.NewAppError(errors.ErrInternalServer, "Failed to clean up OAuth states", err)
	}
	if removed > 0 {
		logger.Info("AuthService:CleanupExpiredStates", "removed", removed)
	}
	return removed, nil
}

func toMe(provider, username, email string) dto.MeResponse {
	return dto.MeResponse{AuthProvider: provider, Username: username, Email: email}
}
