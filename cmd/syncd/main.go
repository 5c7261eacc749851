package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mail-sync-service/internal/config"
	"mail-sync-service/internal/gmailapi"
	"mail-sync-service/internal/model"
	"mail-sync-service/internal/repository"
	"mail-sync-service/internal/service/credential"
	"mail-sync-service/internal/service/fetch"
	"mail-sync-service/internal/service/retention"
	"mail-sync-service/internal/service/syncer"
	"mail-sync-service/pkg/db"
	"mail-sync-service/pkg/lock"
	"mail-sync-service/pkg/logger"
	"mail-sync-service/pkg/mq"
	"mail-sync-service/pkg/redis"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting mail-sync-service...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis (owner locks)
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	tokenRepo := repository.NewTokenRepository(dbConn)
	emailRepo := repository.NewEmailRepository(dbConn)

	// Services
	refresher := gmailapi.NewGoogleRefresher(cfg.Google.ClientID, cfg.Google.ClientSecret)
	guard := credential.NewGuard(tokenRepo, refresher, log)
	coordinator := fetch.NewCoordinator(cfg.Sync.PageSize, log)
	upserter := syncer.NewUpsertEngine(emailRepo, publisher, log)
	ownerLock := lock.NewOwnerLock(rdb, time.Duration(cfg.Sync.LockTTLMinutes)*time.Minute, log)

	requestTimeout := time.Duration(cfg.Sync.RequestTimeoutSeconds) * time.Second
	clientFactory := func(ctx context.Context, cred *model.Credential) (gmailapi.MailClient, error) {
		return gmailapi.NewClient(ctx, cred.AccessToken, requestTimeout)
	}

	orchestrator := syncer.NewOrchestrator(
		tokenRepo,
		guard,
		coordinator,
		upserter,
		emailRepo,
		ownerLock,
		clientFactory,
		publisher,
		cfg.Sync.OwnerConcurrency,
		log,
	)
	sweeper := retention.NewSweeper(tokenRepo, emailRepo, log)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Routine sync - runs every N hours, capped per owner
	log.Info("Starting routine sync loop",
		zap.Int("interval_hours", cfg.Sync.IntervalHours),
		zap.Int("limit", cfg.Sync.RoutineLimit),
	)
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Sync.IntervalHours) * time.Hour)
		defer ticker.Stop()

		// Run immediately on startup
		if _, err := orchestrator.RunCycle(rootCtx, cfg.Sync.RoutineLimit); err != nil {
			log.Error("Initial sync cycle failed", zap.Error(err))
		}

		for {
			select {
			case <-rootCtx.Done():
				log.Info("Routine sync loop stopped")
				return
			case <-ticker.C:
				if _, err := orchestrator.RunCycle(rootCtx, cfg.Sync.RoutineLimit); err != nil {
					log.Error("Sync cycle failed", zap.Error(err))
				}
			}
		}
	}()

	// Light poll - smaller cap, more frequent
	log.Info("Starting poll loop",
		zap.Int("poll_interval_minutes", cfg.Sync.PollIntervalMinutes),
		zap.Int("limit", cfg.Sync.PollLimit),
	)
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Sync.PollIntervalMinutes) * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-rootCtx.Done():
				log.Info("Poll loop stopped")
				return
			case <-ticker.C:
				if _, err := orchestrator.RunCycle(rootCtx, cfg.Sync.PollLimit); err != nil {
					log.Error("Poll cycle failed", zap.Error(err))
				}
			}
		}
	}()

	// Retention sweep - runs daily
	log.Info("Starting retention sweep loop",
		zap.Int("retention_days", cfg.Retention.Days),
		zap.Int("interval_hours", cfg.Retention.IntervalHours),
	)
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Retention.IntervalHours) * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-rootCtx.Done():
				log.Info("Retention sweep loop stopped")
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -cfg.Retention.Days)
				if _, err := sweeper.SweepAll(rootCtx, cutoff); err != nil {
					log.Error("Retention sweep failed", zap.Error(err))
				}
			}
		}
	}()

	// Metrics / health endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: mux,
	}

	go func() {
		log.Info("Metrics server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Metrics server failed", zap.Error(err))
		}
	}()

	log.Info("mail-sync-service is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down mail-sync-service gracefully...")
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server shutdown error", zap.Error(err))
	}

	log.Info("mail-sync-service shutdown complete")
}
