// Package server orchestrates all components: document store, text
// generation, operation registry, dispatcher, COMMS transport and HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/internal/config"
	"github.com/wkc-labs/wkc-server/internal/telemetry"
	"github.com/wkc-labs/wkc-server/pkg/bootstrap"
	"github.com/wkc-labs/wkc-server/pkg/catalog"
	"github.com/wkc-labs/wkc-server/pkg/commsutil"
	"github.com/wkc-labs/wkc-server/pkg/db"
	"github.com/wkc-labs/wkc-server/pkg/dispatcher"
	"github.com/wkc-labs/wkc-server/pkg/docstore"
	"github.com/wkc-labs/wkc-server/pkg/events"
	"github.com/wkc-labs/wkc-server/pkg/genai"
	"github.com/wkc-labs/wkc-server/pkg/intake"
	"github.com/wkc-labs/wkc-server/pkg/ratelimit"
	"github.com/wkc-labs/wkc-server/pkg/registry"
)

const logPrefix = "server:server"

// Server is the wkc-server orchestrator.
type Server struct {
	cfg        *config.Config
	catalog    *catalog.Service
	orders     *intake.Service
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	limiter    ratelimit.Limiter
	httpServer *http.Server

	// commsConnected reports COMMS health; nil when COMMS is not configured.
	commsConnected func() bool
}

// deps are the collaborators newServer wires together.
type deps struct {
	store     docstore.Store
	publisher events.EventPublisher
	gen       genai.Generator
	limiter   ratelimit.Limiter
}

func newServer(cfg *config.Config, d deps) (*Server, error) {
	cat := catalog.NewService(catalog.NewServiceParams{Store: d.store, Publisher: d.publisher})
	orders := intake.NewService(cat, intake.NewPipeline(d.gen))
	reg, err := registry.New(cat, orders)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build registry: %w", logPrefix, err)
	}
	return &Server{
		cfg:        cfg,
		catalog:    cat,
		orders:     orders,
		registry:   reg,
		dispatcher: dispatcher.NewDispatcher(reg, d.gen),
		limiter:    d.limiter,
	}, nil
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	setupLogging(cfg)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	log.Info().Msgf("%s - Starting wkc-server %s", logPrefix, cfg.ServiceVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Tracing
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.COMMSName,
		ServiceVersion: cfg.ServiceVersion,
	})
	if err != nil {
		return fmt.Errorf("%s - failed to init tracing: %w", logPrefix, err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Msgf("%s - tracing shutdown: %v", logPrefix, err)
		}
	}()

	// Step 2: Document store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Step 3: COMMS (optional)
	var (
		nc        *comms.Conn
		publisher events.EventPublisher = &events.NoOpPublisher{}
	)
	if cfg.COMMSURL != "" {
		nc, err = commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		defer nc.Close()
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.EventSubjectPrefix})
	} else {
		log.Info().Msgf("%s - COMMS_URL not set, running without COMMS", logPrefix)
	}

	// Step 4: Rate limiter
	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// Step 5: Text generation, catalog, registry, dispatcher
	gen := genai.NewGeminiClient(cfg.GeminiAPIKey,
		genai.WithModel(cfg.GeminiModel),
		genai.WithBaseURL(cfg.GeminiBaseURL),
		genai.WithHTTPClient(&http.Client{Timeout: cfg.GenerateTimeout}),
	)
	s, err := newServer(cfg, deps{store: store, publisher: publisher, gen: gen, limiter: limiter})
	if err != nil {
		return err
	}
	log.Info().Msgf("%s - Registered %d operations", logPrefix, len(s.registry.Names()))

	if cfg.SeedFile != "" {
		seed, err := bootstrap.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("%s - failed to load seed file: %w", logPrefix, err)
		}
		if _, err := bootstrap.Apply(ctx, s.catalog, seed); err != nil {
			return fmt.Errorf("%s - failed to apply seed: %w", logPrefix, err)
		}
	}

	// Step 6: Query subscription
	if nc != nil {
		sub, err := subscribeQueries(ctx, nc, cfg.QuerySubject, s.dispatcher, cfg.RequestTimeout)
		if err != nil {
			return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, cfg.QuerySubject, err)
		}
		defer func() {
			if err := sub.Unsubscribe(); err != nil {
				log.Warn().Msgf("%s - unsubscribe %s: %v", logPrefix, cfg.QuerySubject, err)
			}
		}()
		s.commsConnected = nc.IsConnected
		log.Info().Msgf("%s - Subscribed to %s", logPrefix, cfg.QuerySubject)
	}

	// Step 7: HTTP API
	addr := cfg.ListenAddr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Msgf("%s - HTTP server listening on %s", logPrefix, addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	log.Info().Msgf("%s - wkc-server is ready", logPrefix)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Msgf("%s - Received signal %s, shutting down", logPrefix, sig)
	case err := <-serveErr:
		log.Error().Msgf("%s - HTTP server error: %v", logPrefix, err)
		return fmt.Errorf("%s - HTTP server: %w", logPrefix, err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Msgf("%s - HTTP shutdown: %v", logPrefix, err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			log.Warn().Msgf("%s - COMMS drain: %v", logPrefix, err)
		}
	}

	log.Info().Msgf("%s - Shutdown complete", logPrefix)
	return nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
}

// openStore connects the configured document store backend, running
// migrations first when enabled.
func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	if cfg.StoreBackend == config.StoreMemory {
		log.Warn().Msgf("%s - Using in-memory document store; data is lost on restart", logPrefix)
		return docstore.NewMemoryStore(), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	if cfg.RunMigrations {
		migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return db.NewDocumentRepository(pool), nil
}

// openLimiter returns the Redis-backed limiter when REDIS_URL is set, else
// the in-process one.
func openLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		l := ratelimit.NewLocalLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		return l, l.Close, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - invalid REDIS_URL: %w", logPrefix, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("%s - failed to reach redis: %w", logPrefix, err)
	}
	log.Info().Msgf("%s - Rate limiting through redis at %s", logPrefix, opts.Addr)
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn().Msgf("%s - redis close: %v", logPrefix, err)
		}
	}
	return ratelimit.NewRedisLimiter(client, "", cfg.RateLimitRPS, cfg.RateLimitBurst), closeFn, nil
}
