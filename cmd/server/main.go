package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"modelgov/internal/audit"
	"modelgov/internal/catalog"
	"modelgov/internal/catalog/cache"
	cyclehandler "modelgov/internal/cycle/handler"
	cyclemetrics "modelgov/internal/cycle/metrics"
	"modelgov/internal/cycle/scope"
	cyclestore "modelgov/internal/cycle/store/cycle"
	scopestore "modelgov/internal/cycle/store/scope"
	jwttoken "modelgov/internal/jwt_token"
	membershiphandler "modelgov/internal/membership/handler"
	membershipmetrics "modelgov/internal/membership/metrics"
	"modelgov/internal/membership/recompute"
	membershipservice "modelgov/internal/membership/service"
	membershipstore "modelgov/internal/membership/store"
	"modelgov/internal/platform/config"
	"modelgov/internal/platform/httpserver"
	"modelgov/internal/platform/logger"
	"modelgov/internal/platform/postgres"
	platformredis "modelgov/internal/platform/redis"
	"modelgov/internal/snapshot"
	httptransport "modelgov/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres open failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		// The name cache is an optimization; the service runs without it.
		log.Warn("redis unavailable, name cache disabled", "error", err.Error())
	}

	auditCtx, auditCancel := context.WithCancel(context.Background())
	auditInbox := make(chan audit.Event, 256)
	auditPublisher := audit.NewChannelPublisher(auditInbox)
	auditWorker := audit.NewWorker(audit.NewPostgresStore(db), auditInbox)
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		if err := auditWorker.Run(auditCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err.Error())
		}
	}()

	memMetrics := membershipmetrics.New()
	cycMetrics := cyclemetrics.New()

	memStore := membershipstore.NewPostgres(db)
	memService := membershipservice.New(
		newMembershipPostgresTx(db, cfg.Postgres.TxTimeout),
		membershipservice.WithLogger(log),
		membershipservice.WithAuditPublisher(auditPublisher),
		membershipservice.WithMetrics(memMetrics),
	)

	var directory catalog.Directory = catalog.NewPostgresDirectory(db)
	if redisClient != nil {
		directory = cache.New(directory, redisClient.Client, cfg.Redis.NameCacheTTL, log)
	}

	scopes := scopestore.NewPostgres(db)
	cycles := cyclestore.NewPostgres(db)
	resolver := scope.NewResolver(scopes, snapshot.NewPostgres(db), cycles, memStore, directory,
		scope.WithResolverLogger(log),
		scope.WithResolverMetrics(cycMetrics),
	)
	materializer := scope.NewMaterializer(scopes, directory,
		scope.WithMaterializerLogger(log),
		scope.WithMaterializerAudit(auditPublisher),
		scope.WithMaterializerMetrics(cycMetrics),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(httptransport.Handlers{
		Membership: membershiphandler.New(memService, log, jwtService),
		Cycle:      cyclehandler.New(cycles, resolver, materializer, log, jwtService),
	})

	scheduler := cron.New()
	job := recompute.New(memStore, log, cfg.Recompute.Parallelism)
	if err := job.Schedule(scheduler, cfg.Recompute.Schedule); err != nil {
		log.Error("recompute schedule invalid", "error", err.Error())
		os.Exit(1)
	}
	scheduler.Start()

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting modelgov", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	<-scheduler.Stop().Done()
	auditCancel()
	<-auditDone
	if redisClient != nil {
		_ = redisClient.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
