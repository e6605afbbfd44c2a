package constants

import "time"

// Echo context keys
const (
	ContextTokenData = "token_data"
	ContextTokenRaw  = "token_raw"
)

// Token scopes
const (
	ScopeTokenAccess = "access"
)

// Redis keys and channels
const (
	RedisKeyTokenBlacklist = "syncup:blacklist:"
	RedisKeyPresence       = "syncup:presence:"
	RedisChannelEvent      = "syncup:event:"
)

// OAuth
const (
	OAuthProviderGitHub = "github"
	OAuthProviderGoogle = "google"
	OAuthStateTTL       = 10 * time.Minute
	OAuthStateLength    = 32
)

// Session defaults
const (
	DefaultSessionCookieName = "syncup_session"
	DefaultSessionTTL        = time.Hour
)

// Event defaults
const (
	DefaultEventStartTime = "09:00"
	DefaultEventEndTime   = "18:00"
	EventNameMinLength    = 2
	EventNameMaxLength    = 50
)

// Presence and stream
const (
	PresenceTTL          = 45 * time.Second
	StreamHeartbeat      = 15 * time.Second
	PresenceLeaveTimeout = 2 * time.Second
)

// Task types
const (
	TaskAvailabilityWrite        = "availability:write"
	TaskAvailabilityPruneCommits = "availability:prune-commits"
	TaskOAuthCleanupStates       = "oauth:cleanup-states"
	OAuthCleanupCronSpec         = "@every 15m"
	AvailabilityPruneCronSpec    = "@every 1h"
	QueueDefault                 = "default"
	QueueLow                     = "low"
	AvailabilityWriteRetry       = 5
	AvailabilityWriteTimeout     = 30 * time.Second
	// Applied commit ids are kept well past the last asynq retry of their task.
	AppliedCommitRetention       = 24 * time.Hour
)
