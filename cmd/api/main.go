package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/api/rest"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/config"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/database"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/repository"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/session"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/telemetry"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/bulkreturns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/wizard"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	defer logger.Sync()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "abstraction-returns-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  30 * time.Second,
		BatchTimeout:   5 * time.Second,
	})
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	go collectPoolMetrics(ctx, pool)

	redisClient := newRedisClient(&cfg.Redis)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	repo := repository.NewReturnsRepository(pool, logger)
	sessions := session.NewSeedingStore(
		session.NewStore(redisClient, repo, logger), repo, logger)
	gateway := &returnsGateway{sessions: sessions, repo: repo}

	handler := rest.NewHandler(
		wizard.NewService(sessions, logger),
		bulkreturns.NewService(logger),
		gateway,
		cfg.Bulk,
		logger,
	)
	server := rest.NewServer(cfg, handler, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}
}

// newRedisClient accepts either a redis:// URL or a bare host:port address
func newRedisClient(cfg *config.RedisConfig) *redis.Client {
	if opts, err := redis.ParseURL(cfg.URL); err == nil {
		return redis.NewClient(opts)
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// returnsGateway is the composite the bulk endpoints talk to: loads go
// through the seeding session store so uploads and template columns see the
// same working state the wizard does, listings come from the repository.
type returnsGateway struct {
	sessions *session.SeedingStore
	repo     *repository.ReturnsRepository
}

func (g *returnsGateway) GetReturn(ctx context.Context, returnID string) (*returns.WaterReturn, error) {
	return g.sessions.Get(ctx, returnID)
}

func (g *returnsGateway) ListDue(ctx context.Context, startDate, endDate time.Time) ([]*returns.WaterReturn, error) {
	return g.repo.ListDue(ctx, startDate, endDate)
}

func (g *returnsGateway) SaveUpdated(ctx context.Context, wr *returns.WaterReturn) error {
	return g.sessions.Set(ctx, wr)
}
