package entity

import (
	"syncup-api/core/entity"
)

// User is an account created on first OAuth sign-in.
type User struct {
	entity.BaseEntity
	Provider       string `db:"provider" json:"provider"`
	ProviderUserID string `db:"provider_user_id" json:"provider_user_id"`
	Username       string `db:"username" json:"username"`
	Email          string `db:"email" json:"email"`
	AvatarURL      string `db:"avatar_url" json:"avatar_url"`
}
