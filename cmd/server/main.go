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

	"github.com/go-chi/chi/v5"

	credmetrics "attesto/internal/credential/metrics"
	credservice "attesto/internal/credential/service"
	"attesto/internal/crypto"
	"attesto/internal/events"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/identity/method"
	idservice "attesto/internal/identity/service"
	jwttoken "attesto/internal/jwt_token"
	"attesto/internal/platform/config"
	"attesto/internal/platform/database"
	"attesto/internal/platform/health"
	"attesto/internal/platform/kafka/producer"
	"attesto/internal/platform/logger"
	"attesto/internal/platform/metrics"
	"attesto/internal/platform/redis"
	"attesto/internal/platform/tracer"
	httptransport "attesto/internal/transport/http"
	"attesto/internal/wallet/lockout"
	walletmetrics "attesto/internal/wallet/metrics"
	walletservice "attesto/internal/wallet/service"
	"attesto/migrations"
	"attesto/pkg/platform/middleware/auth"
	request "attesto/pkg/platform/middleware/request"
	"attesto/pkg/platform/middleware/requesttime"
	limits "attesto/pkg/platform/validation"
)

const (
	accessTokenTTL  = time.Hour
	shutdownTimeout = 10 * time.Second
)

// main wires config, storage, services and the HTTP router, then serves until
// SIGINT or SIGTERM. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := metrics.NewRegistry()

	pool, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer pool.Close() //nolint:errcheck // shutdown path
	if pool != nil {
		if cfg.AutoMigrate {
			version, err := database.Migrate(ctx, pool.DB(), migrations.FS)
			if err != nil {
				return err
			}
			log.Info("schema migrated", "version", version)
		}
		if err := metrics.RegisterDBStats(reg, pool.DB()); err != nil {
			return err
		}
	}

	rc, err := redis.New(ctx, redis.DefaultConfig(cfg.RedisURL), reg)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close() //nolint:errcheck // shutdown path
		go rc.RunPoolStats(ctx, 15*time.Second)
	}

	var sink events.Publisher = events.Discard
	var prod *producer.Producer
	if cfg.KafkaBrokers != "" {
		prod, err = producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			ClientID:        "attesto",
			Acks:            "all",
			Retries:         3,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			return err
		}
		defer prod.Close(5 * time.Second)
		sink = events.NewBreakerPublisher(
			events.NewKafkaPublisher(prod, cfg.TopicPrefix),
			events.NewLogPublisher(log),
			log,
		)
	}
	async := events.NewAsync(sink, cfg.Wallet.EventBufferSize, events.WithAsyncLogger(log))
	defer async.Close()

	stores := buildBackends(pool, rc)
	provider := crypto.New(crypto.WithKDFParams(crypto.KDFParams{
		Time:      cfg.Identity.KDFTime,
		MemoryKiB: cfg.Identity.KDFMemoryKiB,
		Threads:   cfg.Identity.KDFThreads,
	}))

	identity, err := idservice.New(stores.identityDIDs, stores.identityDocs, stores.identityKeys, provider,
		idservice.WithLogger(log),
		idservice.WithMethodTable(method.DefaultTable(cfg.Identity.DIDWebDomain)),
		idservice.WithMinPassphraseLength(cfg.Identity.MinPassphraseLength),
		idservice.WithResolutionCache(cfg.Identity.DIDCacheSize, cfg.Identity.DIDCacheTTL),
	)
	if err != nil {
		return err
	}

	credentials, err := credservice.New(identity, stores.credentials,
		credservice.WithLogger(log),
		credservice.WithEvents(async),
		credservice.WithMetrics(credmetrics.New(reg)),
		credservice.WithTracer(tracer.NewOTel()),
		credservice.WithValidity(time.Duration(cfg.Credential.ValidityDays)*24*time.Hour),
		credservice.WithStatusListBaseURL(cfg.Credential.StatusListBaseURL),
		credservice.WithStatusListLength(cfg.Credential.StatusListLength),
	)
	if err != nil {
		return err
	}

	lockouts, err := lockout.NewTracker(stores.lockouts, lockout.Config{
		MaxAttempts: cfg.Wallet.MaxFailedUnlocks,
		Window:      cfg.Wallet.LockoutDuration,
	})
	if err != nil {
		return err
	}

	wallets, err := walletservice.New(identity, provider, stores.wallets, lockouts,
		walletservice.WithLogger(log),
		walletservice.WithEvents(async),
		walletservice.WithMetrics(walletmetrics.New(reg)),
		walletservice.WithPresenter(credentials),
		walletservice.WithSessionTimeout(cfg.Wallet.SessionTimeout),
		walletservice.WithBackupOnCreate(cfg.Wallet.BackupOnCreate),
		walletservice.WithDefaultMethod(idmodels.Method(cfg.Wallet.DefaultDIDMethod)),
	)
	if err != nil {
		return err
	}

	healthHandler := health.New(stores.names)
	if pool != nil {
		healthHandler.RegisterCheck("postgres", pool.Health)
	}
	if rc != nil {
		healthHandler.RegisterCheck("redis", rc.Health)
	}
	if prod != nil {
		healthHandler.RegisterCheck("kafka", prod.Ping)
	}

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, accessTokenTTL)

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log, request.NewMetrics(reg)))
	r.Use(request.BodyLimit(limits.MaxBodySize))
	r.Use(request.ContentTypeJSON)

	healthHandler.Register(r)
	r.Handle("/metrics", metrics.Handler(reg))
	httptransport.New(wallets, credentials, identity, log,
		httptransport.WithTrustedIssuers(cfg.Credential.TrustedIssuers),
	).Register(r, auth.RequireAuth(jwttoken.NewJWTServiceAdapter(tokens), log))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Addr, "backends", stores.names)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
