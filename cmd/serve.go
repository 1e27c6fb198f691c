package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/kendall-kelly/manuorder-api/repository"
	"github.com/kendall-kelly/manuorder-api/routes"
	"github.com/kendall-kelly/manuorder-api/services"
	"github.com/kendall-kelly/manuorder-api/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db := config.GetDB()
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("failed to shut down tracer", zap.Error(err))
		}
	}()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.GoEnv,
		}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	seq, closeSeq, err := newSequenceAllocator(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSeq()

	publisher := newEventPublisher(cfg)
	defer publisher.Close()

	orders := repository.NewOrderRepository(db, seq)
	users := repository.NewUserRepository(db)
	services.InitOrderService(orders, publisher)
	services.InitQuotationService(orders, publisher)
	services.InitReportService(orders)
	services.InitUploadService(services.InitBlobStore(ctx, cfg))

	var userInfo services.UserInfoProvider
	if !cfg.UsesLocalTokens() && cfg.Auth0Domain != "" {
		userInfo = services.NewAuth0Service(cfg)
	}
	services.InitUserService(users, userInfo)

	auth, err := middleware.Authenticate(cfg)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.Setup(cfg, auth, users),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server is running", zap.String("addr", srv.Addr), zap.String("env", cfg.GoEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newSequenceAllocator uses Redis when REDIS_URL is set and the table
// counter otherwise
func newSequenceAllocator(ctx context.Context, cfg *config.Config) (repository.SequenceAllocator, func(), error) {
	if cfg.RedisURL == "" {
		return repository.NewDBSequence(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("order numbers allocated from redis", zap.String("addr", opts.Addr))
	return repository.NewRedisSequence(client), func() { _ = client.Close() }, nil
}

// newEventPublisher connects to Kafka when brokers are configured. Events
// are best effort, so an unreachable cluster only disables them.
func newEventPublisher(cfg *config.Config) services.EventPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return services.NoopPublisher{}
	}

	publisher, err := services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		logger.Warn("kafka unavailable, order events disabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.Error(err))
		return services.NoopPublisher{}
	}
	return publisher
}
