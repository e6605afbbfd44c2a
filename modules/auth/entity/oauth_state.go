package entity

import "time"

// OAuthState is a one-time CSRF token for a pending sign-in.
type OAuthState struct {
	State     string    `db:"state"`
	Provider  string    `db:"provider"`
	ReturnTo  string    `db:"return_to"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
