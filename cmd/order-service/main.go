package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xozmart/order-service/internal/catalog"
	"github.com/xozmart/order-service/internal/config"
	"github.com/xozmart/order-service/internal/db"
	"github.com/xozmart/order-service/internal/handler"
	"github.com/xozmart/order-service/internal/notify"
	"github.com/xozmart/order-service/internal/order"
	"github.com/xozmart/order-service/internal/ratelimit"
	"github.com/xozmart/order-service/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "order-service").Logger()

	log.Info().Msg("Order service starting...")

	cfg, err := config.New(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	var limitStore ratelimit.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		limitStore = ratelimit.NewRedisStore(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Rate limiting backed by Redis")
	} else {
		limitStore = ratelimit.NewMemoryStore(nil)
		log.Info().Msg("Rate limiting is process-local")
	}
	limiter := ratelimit.New(limitStore, cfg.RateLimit.Limit, cfg.RateLimit.Window)

	catalogRepo := catalog.NewRepository(pg.Pool)
	checker := catalog.NewChecker(catalogRepo)

	orderRepo := order.NewRepository(pg.Pool, cfg.Orders.NumberPrefix)
	notifier := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	svc := order.NewService(orderRepo, checker, notifier, order.ServiceConfig{
		TrustClientPrice: cfg.Orders.TrustClientPrice,
	})

	h := handler.NewOrderHandler(svc, limiter)
	router := transport.NewRouter(h)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
