// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"prato/internal/account"
	"prato/internal/address/viacep"
	"prato/internal/audit"
	"prato/internal/auth"
	"prato/internal/captcha"
	jwttoken "prato/internal/jwt_token"
	"prato/internal/platform/config"
	"prato/internal/platform/httpserver"
	"prato/internal/platform/logger"
	platformredis "prato/internal/platform/redis"
	"prato/internal/registration/handler"
	"prato/internal/registration/metrics"
	regservice "prato/internal/registration/service"
	"prato/internal/registration/store"
	pgstore "prato/internal/registration/store/postgres"
	"prato/internal/registration/store/redisstore"
	httptransport "prato/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()
	health := make(map[string]httptransport.HealthCheck)

	var (
		sessions     store.SessionStore
		records      store.RecordStore
		tx           regservice.StoreTx
		accountStore account.Store
	)

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := pgstore.New(pool)
		accounts := account.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		if err := accounts.EnsureSchema(ctx); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}

		sessions, records, tx, accountStore = pg, pg, pg, accounts
		health["postgres"] = pool.Ping
		log.Info("using postgres stores")
	} else {
		sessions = store.NewInMemorySessionStore()
		records = store.NewInMemoryRecordStore()
		tx = regservice.NewShardedTx()
		accountStore = account.NewInMemoryStore()
		log.Warn("no database configured, using in-memory stores")
	}

	// Redis, when configured, takes over session storage so sessions expire
	// via TTL and survive process restarts independently of postgres.
	if cfg.Redis.URL != "" {
		rdb, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessions = redisstore.New(rdb.Client, cfg.SessionTTL)
		health["redis"] = rdb.Health
		log.Info("using redis session store", "ttl", cfg.SessionTTL)
	}

	var verifier captcha.Verifier = captcha.ThresholdVerifier{}
	if cfg.Captcha.Secret != "" {
		verifier = captcha.NewGoogleVerifier(cfg.Captcha)
	} else {
		log.Warn("no captcha secret configured, using threshold verifier")
	}

	svcOpts := []regservice.Option{
		regservice.WithProvisioner(account.NewProvisioner(accountStore, log)),
		regservice.WithAccountCounter(accountStore),
	}

	// Audit pipeline: handlers push into a bounded inbox, one worker drains
	// it into Kafka. Without brokers the events stay in process memory.
	inbox := make(chan audit.Event, 256)
	var publisher audit.Publisher = audit.NewMemorySink()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka setup failed", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub
		log.Info("audit events publishing to kafka", "topic", cfg.Kafka.Topic)
	}
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go func() {
		if err := audit.NewWorker(publisher, inbox, log).Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	svcOpts = append(svcOpts, regservice.WithAuditEmitter(audit.NewEmitter(inbox, log)))

	registrations := regservice.New(sessions, records, tx, verifier, m, log, svcOpts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)
	authService := auth.NewService(accountStore, jwtService, cfg.TokenTTL, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger: log,
		Features: []httptransport.FeatureHandler{
			handler.New(registrations, viacep.New(cfg.ViaCEPBase), log, jwtValidator),
			auth.NewHandler(authService, log, jwtValidator),
		},
		Health: health,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting prato registration service", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	stopWorker()
}
