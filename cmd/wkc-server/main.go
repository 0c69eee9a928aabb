// Package main is the entrypoint for wkc-server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/wkc-labs/wkc-server/internal/config"
	"github.com/wkc-labs/wkc-server/internal/server"
	"github.com/wkc-labs/wkc-server/pkg/bootstrap"
	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/db"
)

const usage = `Usage: wkc-server [command]
       wkc-server serve              Start the server (HTTP API, optional COMMS).
       wkc-server migrate up         Run database migrations.
       wkc-server migrate status     Show migration status.
       wkc-server ensure-db [name]   Create database if missing (default name: wkc_test). Uses DATABASE_URL host/user.
       wkc-server clear              Delete all products and orders; schema is preserved.
       wkc-server seed [file]        Load products and orders from a seed file (default: SEED_FILE, config/seed.json, seed.json, built-in demo data).

Commands:
  serve           (default) Start the server.
  migrate up      Run database migrations only.
  migrate status  Show current migration status.
  ensure-db       Create a database on the same host as DATABASE_URL.
  clear           Truncate stored documents.
  seed [file]     Seed the catalog.

Environment: GEMINI_API_KEY (serve), DATABASE_URL, STORE_BACKEND (postgres|memory), MIGRATION_PATH,
HTTP_PORT (default 8000), COMMS_URL, REDIS_URL, ALLOWED_ORIGINS. A .env file in the working
directory is loaded first; real environment variables take precedence. See README.
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("wkc-server: ignoring .env: %v", err)
	}

	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("wkc-server migrate: require subcommand (up, status)")
		}
		switch sub := args[1]; sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("wkc-server migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("wkc-server migrate status: %v", err)
			}
		default:
			log.Fatalf("wkc-server migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("wkc-server clear: %v", err)
		}
		return
	case "seed":
		seedFile := ""
		if len(args) > 1 {
			seedFile = args[1]
		}
		if err := runSeed(seedFile); err != nil {
			log.Fatalf("wkc-server seed: %v", err)
		}
		return
	case "ensure-db":
		dbName := "wkc_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("wkc-server ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("wkc-server: %v", err)
	}
}

// withPool loads config, validates it for DB commands and runs fn on a fresh pool.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

func runMigrateStatus() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	})
}

func runClear() error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		if err := db.ClearDocuments(ctx, pool); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		return nil
	})
}

func runSeed(seedFile string) error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		seed, err := bootstrap.LoadSeedFile(seedFile)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		svc := catalog.NewService(catalog.NewServiceParams{Store: db.NewDocumentRepository(pool)})
		res, err := bootstrap.Apply(ctx, svc, seed)
		if err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		fmt.Printf("Seeded %d products and %d orders (%d already present).\n", res.Products, res.Orders, res.Existing)
		for _, e := range res.Errors {
			fmt.Printf("  skipped %s\n", e)
		}
		return nil
	})
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + dbName
	if err := db.EnsureDatabase(context.Background(), u.String()); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}
