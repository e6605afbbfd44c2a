package repository

import (
	"context"
	"database/sql"
	"errors"
	"syncup-api/core/database"
	"syncup-api/core/logger"
	"syncup-api/modules/auth/entity"

	"github.com/google/uuid"
)

type AuthRepository struct {
	DB database.Database
}

func NewAuthRepository(db database.Database) *AuthRepository {
	return &AuthRepository{DB: db}
}

type AuthRepositoryInterface interface {
	UpsertUser(ctx context.Context, user *entity.User) (*entity.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	SaveOAuthState(ctx context.Context, state *entity.OAuthState) error
	ConsumeOAuthState(ctx context.Context, state string) (*entity.OAuthState, error)
	CleanupExpiredOAuthStates(ctx context.Context) (int64, error)
}

// ===================== Users =====================

// UpsertUser creates the user for (provider, provider_user_id) or refreshes its profile.
func (r *AuthRepository) UpsertUser(ctx context.Context, user *entity.User) (*entity.User, error) {
	query := `
		INSERT INTO users (provider, provider_user_id, username, email, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, provider_user_id)
		DO UPDATE SET username = EXCLUDED.username,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = NOW()
		RETURNING id, provider, provider_user_id, username, email, avatar_url, created_at, updated_at
	`

	var saved entity.User
	err := r.DB.GetContext(ctx, &saved, query,
		user.Provider, user.ProviderUserID, user.Username, user.Email, user.AvatarURL)
	if err != nil {
		logger.Error("AuthRepository:UpsertUser", "provider", user.Provider, "error", err)
		return nil, err
	}
	return &saved, nil
}

func (r *AuthRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `
		SELECT id, provider, provider_user_id, username, email, avatar_url, created_at, updated_at
		FROM users WHERE id = $1
	`

	var user entity.User
	err := r.DB.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("AuthRepository:GetUserByID", "user_id", id, "error", err)
		return nil, err
	}
	return &user, nil
}

// ===================== OAuth states =====================

func (r *AuthRepository) SaveOAuthState(ctx context.Context, state *entity.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, provider, return_to, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (state)
		DO UPDATE SET provider = $2, return_to = $3, expires_at = $4
	`
	err := r.DB.ExecContext(ctx, query, state.State, state.Provider, state.ReturnTo, state.ExpiresAt)
	if err != nil {
		logger.Error("AuthRepository:SaveOAuthState", "provider", state.Provider, "error", err)
		return err
	}
	return nil
}

// ConsumeOAuthState deletes the state and returns it, or nil when unknown.
// Expiry is checked by the caller.
func (r *AuthRepository) ConsumeOAuthState(ctx context.Context, state string) (*entity.OAuthState, error) {
	query := `
		DELETE FROM oauth_states WHERE state = $1
		RETURNING state, provider, return_to, expires_at, created_at
	`

	var consumed entity.OAuthState
	err := r.DB.GetContext(ctx, &consumed, query, state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("AuthRepository:ConsumeOAuthState", "error", err)
		return nil, err
	}
	return &consumed, nil
}

func (r *AuthRepository) CleanupExpiredOAuthStates(ctx context.Context) (int64, error) {
	query := `
		WITH deleted AS (
			DELETE FROM oauth_states WHERE expires_at < NOW() RETURNING 1
		)
		SELECT COUNT(*) FROM deleted
	`

	var removed int64
	if err := r.DB.QueryRowContext(ctx, query).Scan(&removed); err != nil {
		logger.Error("AuthRepository:CleanupExpiredOAuthStates", "error", err)
		return 0, err
	}
	return removed, nil
}
