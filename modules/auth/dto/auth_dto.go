package dto

import "time"

// MeResponse is the signed-in user as the frontend sees it.
type MeResponse struct {
	AuthProvider string `json:"auth_provider"`
	Username     string `json:"username"`
	Email        string `json:"email"`
}

// LoginResult is what a completed OAuth callback produces.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	ReturnTo  string
	User      MeResponse
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}
