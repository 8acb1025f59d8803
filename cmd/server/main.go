// Command server runs the land ledger HTTP API: parcel registry, escrowed
// ownership transfer, and inheritance distribution behind one router.
//
// Every external dependency is optional in development: with an empty
// environment the server boots on in-memory stores and an in-memory fund
// ledger. Set DATABASE_URL, REDIS_URL and KAFKA_BROKERS to wire the real
// infrastructure.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"landledger/internal/audit"
	"landledger/internal/escrow"
	escrowhandler "landledger/internal/escrow/handler"
	escrowmetrics "landledger/internal/escrow/metrics"
	"landledger/internal/funds"
	"landledger/internal/inheritance"
	inheritancehandler "landledger/internal/inheritance/handler"
	inheritancemetrics "landledger/internal/inheritance/metrics"
	"landledger/internal/parcel"
	parcelhandler "landledger/internal/parcel/handler"
	"landledger/internal/platform/config"
	"landledger/internal/platform/httpserver"
	"landledger/internal/platform/logger"
	platformmetrics "landledger/internal/platform/metrics"
	"landledger/internal/platform/middleware"
	"landledger/internal/platform/postgres"
	platformredis "landledger/internal/platform/redis"
	"landledger/internal/platform/token"
	id "landledger/pkg/domain"
)

const (
	shutdownTimeout = 10 * time.Second
	requestTimeout  = 30 * time.Second
	parcelCacheTTL  = 5 * time.Minute
	auditBufferSize = 256
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		log.Info("postgres connected")
	} else {
		log.Warn("postgres not configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	// Audit trail: the store is the system of record, kafka fans events out to
	// downstream consumers.
	var auditStore audit.Store
	if db != nil {
		auditStore = audit.NewPostgres(db)
	} else {
		auditStore = audit.NewInMemoryStore()
	}
	auditOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithAsyncBuffer(auditBufferSize),
	}
	if cfg.KafkaBrokers != "" {
		sink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer sink.Close()
		auditOpts = append(auditOpts, audit.WithSink(sink))
		log.Info("kafka audit sink connected", "brokers", cfg.KafkaBrokers)
	}
	auditor := audit.NewPublisher(auditStore, auditOpts...)
	defer auditor.Close()

	var parcelStore parcel.Store
	if db != nil {
		parcelStore = parcel.NewPostgres(db)
	} else {
		parcelStore = parcel.NewInMemoryStore()
	}
	if redisClient != nil {
		parcelStore = parcel.NewCachedStore(parcelStore, redisClient, parcelCacheTTL)
	}
	parcelSvc := parcel.NewService(parcelStore,
		parcel.WithLogger(log),
		parcel.WithAuditPublisher(auditor),
	)

	fundLedger := funds.NewInMemoryLedger()
	escrowAccount, err := systemAccount(cfg.EscrowAccount, "escrow account", log)
	if err != nil {
		return err
	}
	feeAccount, err := systemAccount(cfg.PlatformAccount, "platform account", log)
	if err != nil {
		return err
	}

	var escrowStore escrow.Store
	if db != nil {
		escrowStore = escrow.NewPostgres(db)
	} else {
		escrowStore = escrow.NewInMemoryStore()
	}
	escrowSvc, err := escrow.NewService(escrowStore, parcelSvc, fundLedger, escrow.Config{
		FeeBps:        cfg.FeeBps,
		MaxFeeBps:     cfg.MaxFeeBps,
		Timeout:       cfg.EscrowTimeout,
		EscrowAccount: escrowAccount,
		FeeAccount:    feeAccount,
	},
		escrow.WithLogger(log),
		escrow.WithAuditPublisher(auditor),
		escrow.WithMetrics(escrowmetrics.New()),
	)
	if err != nil {
		return err
	}

	var inheritanceStore inheritance.Store
	if db != nil {
		inheritanceStore = inheritance.NewPostgres(db)
	} else {
		inheritanceStore = inheritance.NewInMemoryStore()
	}
	inheritanceSvc, err := inheritance.NewService(inheritanceStore, parcelSvc, inheritance.Config{
		ClaimPeriod: cfg.ClaimPeriod,
	},
		inheritance.WithLogger(log),
		inheritance.WithAuditPublisher(auditor),
		inheritance.WithMetrics(inheritancemetrics.New()),
	)
	if err != nil {
		return err
	}

	router, err := buildRouter(cfg, log, db, redisClient, parcelSvc, escrowSvc, inheritanceSvc, auditStore)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildRouter(
	cfg config.Config,
	log *slog.Logger,
	db *sql.DB,
	redisClient *platformredis.Client,
	parcelSvc *parcel.Service,
	escrowSvc *escrow.Service,
	inheritanceSvc *inheritance.Service,
	auditStore audit.Store,
) (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics(platformmetrics.New()))
	r.Use(middleware.DeviceCapture)
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", healthHandler(db, redisClient))
	r.Handle("/metrics", promhttp.Handler())

	validator := token.NewValidator(cfg.JWTSigningKey)

	var registrarID id.UserID
	if cfg.RegistrarKeyHash != "" {
		var err error
		registrarID, err = id.ParseUserID(cfg.RegistrarServiceID)
		if err != nil {
			return nil, err
		}
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RegistrarKeyAuth(cfg.RegistrarKeyHash, registrarID, log))
		r.Use(middleware.RequireAuth(validator, log))

		parcelhandler.New(parcelSvc, auditStore, log).Register(r)
		escrowhandler.New(escrowSvc, auditStore, log).Register(r)
		inheritancehandler.New(inheritanceSvc, auditStore, log).Register(r)
	})

	return r, nil
}

// systemAccount resolves a configured system account, minting an ephemeral one
// when unset. Ephemeral accounts only make sense with the in-memory fund
// ledger; production deployments configure stable IDs.
func systemAccount(raw, name string, log *slog.Logger) (id.AccountID, error) {
	if raw == "" {
		minted := id.AccountID(uuid.New())
		log.Warn("minted ephemeral system account", "account", name, "id", minted.String())
		return minted, nil
	}
	account, err := id.ParseAccountID(raw)
	if err != nil {
		return id.AccountID(uuid.Nil), err
	}
	return account, nil
}

func healthHandler(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				status = http.StatusServiceUnavailable
			}
		}
		if redisClient != nil && status == http.StatusOK {
			if err := redisClient.Health(ctx); err != nil {
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}
}
