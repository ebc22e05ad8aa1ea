package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/placement/internal/aiclient"
	"github.com/and161185/placement/internal/config"
	"github.com/and161185/placement/internal/events"
	"github.com/and161185/placement/internal/limiter"
	"github.com/and161185/placement/internal/metrics"
	"github.com/and161185/placement/internal/migrate"
	"github.com/and161185/placement/internal/repository/postgres"
	grpcserver "github.com/and161185/placement/internal/server/grpc"
	"github.com/and161185/placement/internal/server/httpapi"
	"github.com/and161185/placement/internal/service"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the ops gRPC endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := commonRun(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.MigrateOnStart {
		if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	users := postgres.NewUserRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	appRepo := postgres.NewApplicationRepo(db)
	certRepo := postgres.NewCertificateRepo(db)
	lockout := limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)

	health := []httpapi.HealthCheck{{Name: "postgres", Required: true, Check: db.Ping}}
	deps := []grpcserver.Dependency{{Name: "postgres", Check: db.Ping}}

	var verify limiter.Window = limiter.Unlimited{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		verify = limiter.NewRedis(rdb, "placement:verify:", cfg.VerifyRateLimit, cfg.VerifyRateWindow, log)
		health = append(health, httpapi.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		log.Warn("redis not configured, public verification is not rate limited")
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafka(events.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		}, log)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("event publisher close", zap.Error(err))
		}
	}()

	// Interfaces stay nil when AI is off so the services take their fallbacks.
	var (
		assistant service.Assistant
		renderer  service.Renderer
	)
	if cfg.AIEnabled() {
		ai := aiclient.New(cfg.AIServiceURL, cfg.AITimeout)
		assistant, renderer = ai, ai
		health = append(health, httpapi.HealthCheck{Name: "ai", Check: ai.Health})
	}

	met := metrics.New()
	auth := service.NewAuthService(users, []byte(cfg.JWTKey), cfg.AccessTTL, lockout, log)
	jobs := service.NewJobService(jobRepo, cfg.DefaultMaxApplications)
	apps := service.NewApplicationService(appRepo, pub, met, log)
	certs := service.NewCertificateService(appRepo, certRepo, renderer, pub, met, log)
	assist := service.NewAssistService(assistant, users, jobs, met, log)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.New(httpapi.Deps{
			Auth:         auth,
			Jobs:         jobs,
			Applications: apps,
			Certificates: certs,
			Assist:       assist,
			VerifyLimit:  verify,
			Metrics:      met,
			Health:       health,
			Log:          log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ops := grpcserver.NewOps(log, grpcserver.Options{
		ShutdownTimeout: cfg.ShutdownTimeout,
		Reflection:      cfg.Debug,
	}, deps...)
	opsLis, err := net.Listen("tcp", cfg.OpsAddr)
	if err != nil {
		return fmt.Errorf("listen ops: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ops.Serve(gctx, opsLis) })
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	err = g.Wait()
	log.Info("shutdown complete", zap.Error(err))
	return err
}
