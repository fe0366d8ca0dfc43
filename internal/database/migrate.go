package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/fluxpro/relay-server-go/internal/config"
)

//go:embed schema.sql
var schema string

// Migrate creates the relay tables when they do not exist yet. The schema is
// applied in one transaction so a failed statement leaves nothing behind.
func (db *DB) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return nil
	})
}

// MigrateUntilReady retries Migrate every interval until it succeeds or ctx
// ends, and reports whether the schema was applied.
func (db *DB) MigrateUntilReady(ctx context.Context, interval time.Duration) bool {
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
		err := db.Migrate(attemptCtx)
		cancel()
		if err == nil {
			log.Info().Msg("database schema ready")
			return true
		}

		log.Warn().Err(err).Dur("retryIn", interval).Msg("database unavailable, schema not applied")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}
