package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aaronwang/auction-house/auction-server/internal/auction"
	"github.com/aaronwang/auction-house/auction-server/internal/catalog"
	"github.com/aaronwang/auction-house/auction-server/internal/handlers"
	"github.com/aaronwang/auction-house/auction-server/internal/mail"
	redisClient "github.com/aaronwang/auction-house/auction-server/internal/redis"
	"github.com/aaronwang/auction-house/auction-server/internal/retryq"
	"github.com/aaronwang/auction-house/auction-server/internal/service"
	"github.com/aaronwang/auction-house/auction-server/internal/storage"
	"github.com/aaronwang/auction-house/auction-server/internal/storage/sqlstore"
	"github.com/aaronwang/auction-house/shared/config"
)

// Config holds application configuration
type Config struct {
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	// CatalogPath is a YAML catalog; empty uses the built-in one.
	CatalogPath string `env:"CATALOG_PATH"`

	// DatabaseURL selects Postgres; otherwise SQLitePath is used.
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"auction.db"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	NatsURL       string `env:"NATS_URL" envDefault:"nats://localhost:4222"`

	Heartbeat       time.Duration `env:"HEARTBEAT" envDefault:"50ms"`
	RetryMaxTries   uint          `env:"RETRY_MAX_TRIES" envDefault:"5"`
	RetryInterval   time.Duration `env:"RETRY_INTERVAL" envDefault:"100ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("auction server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx := context.Background()
	logger.Info("starting auction server")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded",
		slog.Int("houses", len(cat.Houses())),
		slog.Int("items", cat.Len()))

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	retry := retryq.Config{MaxTries: cfg.RetryMaxTries, InitialInterval: cfg.RetryInterval}
	writer := storage.NewWriter(db, retry, logger)

	logger.Info("connecting to redis", slog.String("addr", cfg.RedisAddr))
	redis, err := redisClient.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redis.Close()

	logger.Info("connecting to nats", slog.String("url", cfg.NatsURL))
	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return err
	}
	defer natsConn.Close()
	js, err := jetstream.New(natsConn)
	if err != nil {
		return err
	}
	if err := mail.EnsureStream(ctx, js); err != nil {
		return err
	}
	mailer := mail.NewMailer(js, retry, logger)

	ledger := redisClient.NewLedger(redis)
	dir, err := auction.NewDirectory(auction.Config{Houses: cat.Houses(), Economy: cat.Economy()}, auction.Deps{
		Templates: cat,
		Bank:      ledger,
		Mailer:    mailer,
		Inventory: mailer,
		Persister: writer,
		Events:    redisClient.NewPublisher(redis, logger),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	items, err := dir.LoadItems(ctx, db)
	if err != nil {
		return err
	}
	auctions, err := dir.LoadAuctions(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("state loaded", slog.Int("items", items), slog.Int("auctions", auctions))

	world := service.NewWorld(dir, service.Config{Heartbeat: cfg.Heartbeat}, logger)
	worldCtx, stopWorld := context.WithCancel(ctx)
	go world.Run(worldCtx)

	handler := handlers.NewHandler(world, ledger, logger)
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler.SetupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("auction server listening", slog.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server error", slog.String("error", err.Error()))
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	stopWorld()
	<-world.Done()

	if err := writer.Close(shutdownCtx); err != nil {
		logger.Error("storage writer did not drain", slog.Int("pending", writer.Pending()))
	}
	if err := mailer.Close(shutdownCtx); err != nil {
		logger.Error("mail queue did not drain", slog.Int("pending", mailer.Pending()))
	}
	applied, failed := writer.Stats()
	logger.Info("auction server stopped", slog.Int("writes", applied), slog.Int("failed_writes", failed))
	return nil
}

func openStore(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	if cfg.DatabaseURL != "" {
		return sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
	}
	return sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
}
