package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/organizer-live/organizer/internal/app/httpapi"
	"github.com/organizer-live/organizer/internal/app/identity"
	"github.com/organizer-live/organizer/internal/platform/config"
	"github.com/organizer-live/organizer/internal/platform/dbpool"
	"github.com/organizer-live/organizer/internal/platform/env"
	"github.com/organizer-live/organizer/internal/platform/metrics"
	"github.com/organizer-live/organizer/internal/platform/natsutil"
	"github.com/organizer-live/organizer/internal/store"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(env.String("CONFIG_FILE", "organizer.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	pool, err := dbpool.New(runCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	identityRepo := identity.NewPostgresRepository(pool)
	identitySvc := identity.NewService(identityRepo, identity.NewTokenManager(cfg.JWTSecret))

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, env.Duration("NATS_CONNECT_TIMEOUT", 20*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	eventStore := store.NewPostgresStore(pool, publisher.Publish, client.SubscribeNew)
	if err := waitForSchemas(runCtx, identityRepo, eventStore, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	janitor := store.NewJanitor(eventStore)
	janitor.Schedule = cfg.PurgeSchedule
	janitor.Retention = cfg.PurgeRetention.Std()
	if err := janitor.Start(); err != nil {
		log.Fatal(err)
	}
	defer janitor.Stop()

	handler := httpapi.NewHandler(eventStore, identitySvc, cfg.UIOrigin)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkAPIReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Organizer API listening on %s\n", cfg.APIAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("organizer-api graceful shutdown failed: %v", err)
	}
}

func waitForSchemas(ctx context.Context, identityRepo *identity.PostgresRepository, eventStore *store.PostgresStore, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = identityRepo.EnsureSchema(attemptCtx)
		if lastErr == nil {
			lastErr = eventStore.EnsureSchema(attemptCtx)
		}
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkAPIReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
