package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dapurlima/backend/internal/cache"
	"dapurlima/backend/internal/cloudsync"
	"dapurlima/backend/internal/config"
	"dapurlima/backend/internal/httpapi"
	"dapurlima/backend/internal/service"
	"dapurlima/backend/internal/store"
	"dapurlima/backend/internal/store/memory"
	pgstore "dapurlima/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		} else {
			repo = pg
			closers = append(closers, pg.Close)
			log.Println("repository: postgres")
		}
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	movementCache := cache.MovementCache(cache.NoopMovementCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisMovementCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			movementCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("movement cache: redis")
		}
	} else {
		log.Println("movement cache: noop")
	}

	var sender cloudsync.Sender = cloudsync.NoopSender{}
	if cfg.CloudSyncURL != "" {
		sender = cloudsync.NewHTTPSender(cfg.CloudSyncURL)
		log.Println("cloud sync: http")
	} else {
		log.Println("cloud sync: noop")
	}
	syncQueue := cloudsync.NewQueue(sender, 256)
	closers = append(closers, syncQueue.Close)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	svc := service.New(repo, movementCache, syncQueue, auth, cfg.OutletID, time.Duration(cfg.MovementTTLSeconds)*time.Second)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, syncQueue.FailedCount)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("reconciliation backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
