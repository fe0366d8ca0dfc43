package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Retry interval for the schema migration while the database is down
const DBMigrateRetryInterval = 30 * time.Second

// Outbound calls to the Graph API and OAuth token endpoints
const GraphRequestTimeout = 10 * time.Second

// OAuth login attempts
const OAuthStateTTL = 10 * time.Minute

// Background credential refresh
const (
	CredentialRefreshInterval = 15 * time.Minute
	CredentialRefreshWindow   = 30 * time.Minute
)

// Inbound message de-duplication window
const MessageDedupTTL = 24 * time.Hour

// Upper bound on exporting one inbound event, broker confirm included
const EventExportTimeout = 5 * time.Second

// Per-IP limits for the operator-facing API
const (
	SendMessageRateLimit = 60
	AuthRateLimit        = 20
	RateLimitWindow      = time.Minute
)
