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

	redisClient "github.com/aaronwang/auction-house/broadcast-service/internal/redis"
	wsHandler "github.com/aaronwang/auction-house/broadcast-service/internal/websocket"
	"github.com/aaronwang/auction-house/shared/config"
)

// Config holds application configuration
type Config struct {
	ServerAddr    string `env:"SERVER_ADDR" envDefault:":8081"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting to redis", slog.String("addr", cfg.RedisAddr))
	subscriber, err := redisClient.NewSubscriber(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer subscriber.Close()

	if err := subscriber.SubscribeToHouses(ctx); err != nil {
		logger.Error("failed to subscribe", slog.String("error", err.Error()))
		os.Exit(1)
	}

	wsManager := wsHandler.NewManager(logger)
	go wsManager.Run(ctx)

	// Redis Pub/Sub -> WebSocket
	messageChan := make(chan *redisClient.Message, 256)
	go func() {
		if err := subscriber.Listen(ctx, messageChan); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("redis listener stopped", slog.String("error", err.Error()))
		}
		close(messageChan)
	}()
	go func() {
		for msg := range messageChan {
			wsManager.Broadcast(msg.HouseID, msg.Payload)
		}
	}()

	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     wsHandler.NewHandler(wsManager, logger).SetupRoutes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("broadcast service listening", slog.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	cancel()
	logger.Info("server stopped gracefully")
}
