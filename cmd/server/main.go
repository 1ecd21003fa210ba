// Command signflow-server starts the signflow gRPC server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	pb "github.com/and161185/signflow/api/signflow/v1"
	"github.com/and161185/signflow/internal/catalog"
	"github.com/and161185/signflow/internal/config"
	"github.com/and161185/signflow/internal/limiter"
	"github.com/and161185/signflow/internal/metrics"
	"github.com/and161185/signflow/internal/migrate"
	"github.com/and161185/signflow/internal/repository/kv"
	grpcserver "github.com/and161185/signflow/internal/server/grpc"
	"github.com/and161185/signflow/internal/service"
	"github.com/and161185/signflow/internal/storage"
	"github.com/and161185/signflow/internal/storage/postgres"
	"github.com/and161185/signflow/internal/storage/redis"
	"github.com/and161185/signflow/internal/sweeper"
	"github.com/and161185/signflow/internal/workflow"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	loginWindow   = 15 * time.Minute
	loginMaxFails = 5
	loginBlockFor = 15 * time.Minute
)

// main parses configuration, opens storage, and starts the gRPC server.
func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, lim, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer closeStore()

	cat, err := catalog.Open(cfg.Templates)
	if err != nil {
		logger.Fatal("load templates", zap.Error(err))
	}

	// Repositories
	docRepo := kv.NewDocumentRepo(provider)
	userRepo := kv.NewUserRepo(provider)

	wf := workflow.New(docRepo,
		workflow.WithLogger(logger),
		workflow.WithNotifier(workflow.Notifiers{workflow.LogNotifier(logger)}),
	)

	// Services
	key := []byte(cfg.JWTKey)
	authSvc := service.NewAuthService(userRepo, key, cfg.AccessTTL, lim)
	docSvc := service.NewDocumentService(docRepo, cat)
	sigSvc := service.NewSignatureService(docRepo, wf, cfg.SignRetries, logger)

	sw := sweeper.New(docRepo, wf, cfg.ExpireAfter, cfg.SweepInterval, logger)
	if sw.Enabled() {
		go func() {
			if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sweeper stopped", zap.Error(err))
			}
		}()
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(key),
		),
	}
	if !cfg.Insecure {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)

	app := grpcserver.New(authSvc, docSvc, sigSvc, cat, key)
	pb.RegisterSignflowServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", !cfg.Insecure))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = metricsSrv.Shutdown(sctx)
			cancel()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// openStorage returns the configured provider together with a login limiter that
// lives next to it. Only postgres shares limiter state across instances.
func openStorage(ctx context.Context, cfg config.Config) (storage.Provider, limiter.Limiter, func(), error) {
	mem := func() limiter.Limiter { return limiter.NewMemory(loginWindow, loginMaxFails, loginBlockFor) }
	switch cfg.Storage {
	case config.StoragePostgres:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("pgxpool: %w", err)
		}
		lim := limiter.NewPG(db.Pool, loginWindow, loginMaxFails, loginBlockFor)
		return postgres.NewKV(db), lim, db.Close, nil
	case config.StorageRedis:
		st, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisNamespace)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis: %w", err)
		}
		return st, mem(), func() { _ = st.Close() }, nil
	default:
		return storage.NewMemory(), mem(), func() {}, nil
	}
}
