// cmd/admin serves the dashboard API: pair config CRUD, run/fill/profit
// queries, kline reads and a websocket that relays live run events from
// redis. Mutating endpoints are TOTP-guarded when ADMIN_TOTP_SECRET is set.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradebotv1/config"
	"tradebotv1/internal/admin"
	"tradebotv1/internal/logger"
	"tradebotv1/internal/metrics"
	sqlitestore "tradebotv1/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	log := logger.Init("admin", logger.ParseLevel(cfg.LogLevel))

	store, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Error("sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Error("sqlite open failed", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, websocket relay disabled", "addr", cfg.RedisAddr, "error", err)
			rdb = nil
		}
		if rdb != nil {
			defer rdb.Close()
		}
	}

	hub := admin.NewHub(rdb, log)
	go hub.Run(ctx)

	if cfg.MetricsAddr != "" {
		health := metrics.NewHealthStatus()
		health.StartLivenessChecker(ctx, rdb, reader.DB(), 15*time.Second)
		metrics.NewServer(cfg.MetricsAddr, health).Start()
	}

	mux := http.NewServeMux()
	admin.RegisterRoutes(mux, store, reader, hub, cfg.TOTPSecret, log)

	srv := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("admin server listening", "addr", cfg.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
