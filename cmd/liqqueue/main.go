package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"LiquidationQueue/internal/core"
	"LiquidationQueue/internal/ingestion"
	"LiquidationQueue/internal/observability"
	"LiquidationQueue/internal/persistence"
	"LiquidationQueue/internal/server"
	"LiquidationQueue/internal/state"
	"LiquidationQueue/internal/store"
	"LiquidationQueue/migrations"
)

func main() {
	logger := observability.NewLogger("liqqueue")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Store ---
	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("open store")
	}
	defer db.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("store opened")

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	healthChecker.AddCheck("store", func(ctx context.Context) error {
		return db.View(ctx, func(store.KVStore) error { return nil })
	})

	// --- Engine ---
	engine := core.NewEngine(db, observability.NewLogger("engine"), metrics, cfg.CommandLRUCapacity)
	genesis := core.Env{Sender: cfg.Genesis.Owner, BlockTime: uint64(time.Now().Unix())}
	switch err := engine.Instantiate(ctx, genesis, cfg.Genesis); {
	case err == nil:
		logger.Info().Str("owner", cfg.Genesis.Owner).Msg("genesis config stored")
	case errors.Is(err, state.ErrAlreadyInitialized):
		logger.Info().Msg("config already initialized")
	default:
		logger.Fatal().Err(err).Msg("instantiate")
	}

	errChan := make(chan error, 8)

	// --- NATS ---
	var subscriber *ingestion.NATSSubscriber
	if cfg.NATSEnabled {
		var nc *nats.Conn
		nc, subscriber, err = startNATS(ctx, cfg, engine, metrics, errChan)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats")
		}
		defer nc.Close()
		healthChecker.AddCheck("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
	} else {
		logger.Warn().Msg("NATS disabled: commands are accepted over gRPC only")
	}

	// --- gRPC + HTTP ---
	if len(cfg.APITokens) == 0 {
		logger.Warn().Msg("QUEUE_API_TOKENS is empty: gRPC accepts queries only")
	}
	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, cfg.HTTPAddr, &server.ServerDeps{
		Engine:        engine,
		Auth:          server.NewAuthenticator(cfg.APITokens),
		HealthChecker: healthChecker,
		Logger:        observability.NewLogger("grpc"),
	})
	go func() {
		errChan <- grpcServer.StartGRPC(ctx)
	}()
	go func() {
		errChan <- grpcServer.StartHTTP(ctx)
	}()

	healthChecker.SetReady(true)
	logger.Info().Str("grpc", cfg.GRPCAddr).Str("http", cfg.HTTPAddr).Msg("liquidation queue ready")

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("component failed, shutting down")
	}

	healthChecker.SetReady(false)
	cancel()
	if subscriber != nil {
		subscriber.Stop()
	}
	logger.Info().Msg("shutdown complete")
}

func openStore(ctx context.Context, cfg Config, logger zerolog.Logger) (store.DB, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemDB(), nil
	case "pebble":
		return store.OpenPebble(cfg.PebbleDir, &pebble.Options{})
	case "postgres":
		sqlDB, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("postgres open: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}

		migrator := persistence.NewMigrator(sqlDB, migrations.FS, logger)
		if cfg.MigrationsDir != "" {
			migrator = persistence.NewDirMigrator(sqlDB, cfg.MigrationsDir, logger)
		}
		if _, err := migrator.Up(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return store.NewPostgresDB(sqlDB), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// startNATS wires JetStream commands into the engine and the engine's
// committed events back out to JetStream.
func startNATS(ctx context.Context, cfg Config, engine *core.Engine, metrics *observability.Metrics, errChan chan<- error) (*nats.Conn, *ingestion.NATSSubscriber, error) {
	logger := observability.NewLogger("ingestion")

	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		nc.Close()
		return nil, nil, err
	}
	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		nc.Close()
		return nil, nil, err
	}

	publisher := ingestion.NewOutboundPublisher(js, cfg.OutboundBuffer, logger, metrics)
	engine.SetEventSink(publisher)
	go func() {
		if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("outbound publisher: %w", err)
		}
	}()

	cmds := make(chan ingestion.RawCommand, cfg.CommandChanSize)
	dispatcher := ingestion.NewDispatcher(engine, cmds, logger, metrics)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	subscriber := ingestion.NewNATSSubscriber(js, cmds, logger)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info().Str("url", cfg.NATSURL).Msg("NATS connected")
	return nc, subscriber, nil
}
