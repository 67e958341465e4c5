package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/catawiki-seller-parser/internal/api"
	"github.com/maltedev/catawiki-seller-parser/internal/cache"
	"github.com/maltedev/catawiki-seller-parser/internal/config"
	"github.com/maltedev/catawiki-seller-parser/internal/database"
	"github.com/maltedev/catawiki-seller-parser/internal/extractor"
	"github.com/maltedev/catawiki-seller-parser/internal/metrics"
	"github.com/maltedev/catawiki-seller-parser/internal/parser"
	"github.com/maltedev/catawiki-seller-parser/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	opts := []extractor.Option{extractor.WithMetrics(m)}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		opts = append(opts, extractor.WithCache(cache.NewProfileCache(redisClient, cfg.Cache.KeyPrefix, cfg.Cache.TTL)))
	}

	var (
		profiles api.ProfileReader
		outbox   api.OutboxStats
	)
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}

		repo := database.NewProfileRepository(db, cfg.Outbox.Stream)
		profiles = repo
		opts = append(opts, extractor.WithStore(repo))

		if redisClient != nil {
			relay := database.NewRelay(database.NewOutboxRepository(db), redisClient, log, database.RelayConfig{
				PollInterval: cfg.Outbox.PollInterval,
				BatchSize:    cfg.Outbox.BatchSize,
				StreamMaxLen: cfg.Outbox.StreamMaxLen,
				Metrics:      m,
			})
			outbox = relay

			go func() {
				if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("relay stopped with error", "error", err)
				}
			}()
		} else {
			log.Warn("redis disabled, outbox events will not be relayed")
		}
	}

	svc := extractor.NewService(parser.NewCatawikiParser(), log, opts...)
	handlers := api.NewHandlers(svc, profiles, outbox, cfg.Server.MaxBodyBytes, log)
	router := api.NewRouter(handlers, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Timeout:        cfg.Server.WriteTimeout,
		Metrics:        m.Handler(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting",
		"addr", server.Addr,
		"database", cfg.Database.Enabled,
		"redis", cfg.Redis.Enabled)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Info("server stopped")
	return nil
}
