package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const clearLogPrefix = "db:clear"

// ClearDocuments removes every stored product and order. The schema is kept.
func ClearDocuments(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msgf("%s - Clearing documents table", clearLogPrefix)

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE documents RESTART IDENTITY`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	log.Info().Msgf("%s - Documents cleared", clearLogPrefix)
	return nil
}
