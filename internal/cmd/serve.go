package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	storegrpc "github.com/fjod/storefront/internal/grpc"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/mailer"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/repository"
	s "github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the gRPC health port and the outbox poller",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, "storefront", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", slog.Any("error", err))
		}
	}()

	// Database setup
	creds := cfg.Credentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations completed", slog.String("driver", creds.Driver))

	redisClient := connectRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeSessions()

	var productCache cache.ProductCache
	if redisClient != nil {
		productCache = cache.NewRedisCache(redisClient)
	}

	var mailClient mailer.EmailClient = mailer.NewLogClient(logger)
	if cfg.SendGridAPIKey != "" {
		mailClient = mailer.NewSendGridClient(cfg.SendGridAPIKey, cfg.MailFromName)
	}
	notifier := mailer.New(mailer.NewBreakerClient(mailClient, logger), cfg.MailFrom, logger)

	// Services
	catalog := s.NewCatalogService(repo, productCache)
	handlers := h.Handlers{
		Products: h.NewProductHandler(catalog, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(s.NewCartService(repo), cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(s.NewCheckoutService(repo, payment.NewTestCardProvider(), notifier, productCache), cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(s.NewOrderService(repo), cfg.RequestTimeout),
		Users:    h.NewUserHandler(s.NewUserService(repo, notifier), cfg.RequestTimeout),
		Admin:    h.NewAdminHandler(catalog, cfg.RequestTimeout),
	}

	router := h.NewRouter(handlers, h.RouterConfig{
		Sessions:       sessions,
		Cookie:         h.CookieConfig{Name: h.DefaultCookieName, TTL: cfg.SessionTTL},
		RequestTimeout: cfg.RequestTimeout,
		DB:             repo,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health port
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	health := storegrpc.NewHealthServer(repo)
	go health.Watch(ctx)
	go func() {
		slog.Info("grpc health server listening", slog.String("port", cfg.GRPCPort))
		if err := health.Serve(lis); err != nil {
			slog.Error("grpc server error", slog.Any("error", err))
		}
	}()

	// Outbox relay, only when Kafka is configured
	var poller *publisher.OutboxPoller
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.KafkaTopic, brokers...)
		poller = publisher.NewOutboxPoller(repo.Outbox(), writer, logger)
		go poller.Run(ctx)
		slog.Info("outbox poller started", slog.String("topic", cfg.KafkaTopic), slog.Any("brokers", brokers))
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("storefront listening", slog.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		stop()
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.Any("error", err))
	}
	health.Stop()
	if poller != nil {
		if err := poller.Close(); err != nil {
			slog.Error("kafka writer close error", slog.Any("error", err))
		}
	}

	slog.Info("storefront stopped")
	return nil
}

// connectRedis returns nil when Redis is not configured or does not answer.
// The session store then fails loudly if it needed Redis; the product cache
// is simply skipped.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unavailable, running without product cache", slog.Any("error", err))
		_ = client.Close()
		return nil
	}
	slog.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))
	return client
}

func newSessionStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("session backend redis needs a reachable REDIS_ADDR")
		}
		return session.NewRedisStore(redisClient, cfg.SessionTTL), func() {}, nil

	case config.SessionBackendMongo:
		db, err := session.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		store, err := session.NewMongoStore(ctx, db, cfg.SessionTTL)
		if err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		slog.Info("session store connected to mongodb", slog.String("database", cfg.MongoDBName))
		return store, func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				slog.Error("mongodb disconnect error", slog.Any("error", err))
			}
		}, nil

	default:
		store := session.NewMemoryStore(cfg.SessionTTL)
		return store, func() { _ = store.Close() }, nil
	}
}
