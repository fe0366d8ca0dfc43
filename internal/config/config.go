package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	StoreDriverPostgres  = "postgres"
	StoreDriverFirestore = "firestore"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "token", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	StoreDriver              string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL              string `env:"DATABASE_URL"`
	FirestoreProjectID       string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentialsFile string `env:"FIRESTORE_CREDENTIALS_FILE"`
	RedisURL                 string `env:"REDIS_URL"`
	AMQPURL                  string `env:"AMQP_URL"`
	AMQPExchange             string `env:"AMQP_EXCHANGE" envDefault:"fluxpro.events"`

	VerifyToken     string `env:"VERIFY_TOKEN,required"`
	MetaAppID       string `env:"META_APP_ID"`
	MetaAppSecret   string `env:"META_APP_SECRET"`
	PageAccessToken string `env:"PAGE_ACCESS_TOKEN"`
	GraphAPIBaseURL string `env:"GRAPH_API_BASE_URL" envDefault:"https://graph.facebook.com"`
	GraphAPIVersion string `env:"GRAPH_API_VERSION" envDefault:"v21.0"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	OAuthRedirectBase  string `env:"OAUTH_REDIRECT_BASE" envDefault:"http://localhost:3000"`
	StateSecret        string `env:"STATE_SECRET,required"`

	EncryptionKey       string `env:"ENCRYPTION_KEY"`
	PaymentWebhookToken string `env:"PAYMENT_WEBHOOK_TOKEN"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GraphURL joins the versioned Graph API base with path, which must start with "/".
func (c *Config) GraphURL(path string) string {
	return strings.TrimRight(c.GraphAPIBaseURL, "/") + "/" + c.GraphAPIVersion + path
}

func (c *Config) CallbackURL(provider string) string {
	return strings.TrimRight(c.OAuthRedirectBase, "/") + "/auth/" + provider + "/callback"
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required when STORE_DRIVER=%s", StoreDriverFirestore)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (expected %s or %s)", c.StoreDriver, StoreDriverPostgres, StoreDriverFirestore)
	}

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if c.IsProduction() {
		if err := validateSecret("STATE_SECRET", c.StateSecret); err != nil {
			return err
		}

		if c.MetaAppSecret == "" {
			log.Warn().Msg("META_APP_SECRET is empty in production: webhook signature verification disabled")
		}
		if c.PaymentWebhookToken == "" {
			log.Warn().Msg("PAYMENT_WEBHOOK_TOKEN is empty in production: payment webhook is unauthenticated")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: credentials will not be encrypted at rest")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
