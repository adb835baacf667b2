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

	"github.com/redis/go-redis/v9"

	httpAdapter "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/email"
	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/memory"
	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/openai"
	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/postgres"
	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/redisqueue"
	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/storage"
	"github.com/lorrc/helpdesk-backend/internal/auth"
	"github.com/lorrc/helpdesk-backend/internal/config"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/core/services"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/logging"
	"github.com/lorrc/helpdesk-backend/internal/realtime"
)

// repositories groups the persistence ports for the selected driver.
type repositories struct {
	users     ports.UserRepository
	tickets   ports.TicketRepository
	messages  ports.MessageRepository
	analytics ports.AnalyticsRepository
	tx        ports.TransactionManager
	ping      httpAdapter.HealthChecker
	close     func()
}

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Persistence
	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise storage", "error", err)
		os.Exit(1)
	}
	defer repos.close()

	clk := clock.Real()

	// 4. Notifications: Redis queue when configured, in-process otherwise
	mailer := email.NewMailer(cfg.Redis.MailFrom, email.NewMockSMTPSender(logger), logger)
	var notifier ports.Notifier = email.NewDirectNotifier(mailer)
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisqueue.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = redisClient.Close() }()
		notifier = redisqueue.NewQueue(redisClient, cfg.Redis.QueueKey, clk)
		logger.Info("notifications queued through redis", "queue", cfg.Redis.QueueKey)
	}

	// 5. Blob store and AI provider
	blobs, err := storage.NewLocalStore(cfg.Blob.Dir, cfg.Blob.PublicURL, logger)
	if err != nil {
		logger.Error("failed to initialise blob store", "error", err)
		os.Exit(1)
	}

	ai := openai.NewResponder(openai.Config{
		APIKey:             cfg.AI.APIKey,
		BaseURL:            cfg.AI.BaseURL,
		ChatModel:          cfg.AI.ChatModel,
		MaxTokens:          cfg.AI.MaxTokens,
		SpeechModel:        cfg.AI.SpeechModel,
		Voice:              cfg.AI.Voice,
		TranscriptionModel: cfg.AI.TranscriptionModel,
		Timeout:            cfg.AI.Timeout,
	}, blobs, clk, logger)

	// 6. Real-time fan-out
	bus := realtime.NewBus(cfg.Realtime.SubscriberBuffer, logger)

	// 7. Services (Core)
	balancer := services.NewLoadBalancer(repos.users, repos.tickets, logger)
	ticketService := services.NewTicketService(repos.tickets, repos.users, balancer, repos.tx, notifier, clk, logger)
	callService := services.NewCallService(repos.tickets, bus, clk, logger)
	chatService := services.NewChatService(repos.tickets, repos.messages, bus, ai, blobs, callService, clk, cfg.AI.RouteTimeout, logger)
	speechService := services.NewSpeechService(ai, logger)
	directoryService := services.NewDirectoryService(repos.users, clk, logger)
	reportService := services.NewReportService(repos.analytics, clk, logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub(bus, ticketService, logger)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(hubCtx)
	}()

	// 8. Rate limiters
	var generalRateLimiter, aiRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			Name:              "general",
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		aiRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			Name:              "ai",
			RequestsPerSecond: cfg.RateLimit.AIRPS,
			BurstSize:         cfg.RateLimit.AIBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
	}

	// 9. Router
	checks := map[string]httpAdapter.HealthChecker{"database": repos.ping}
	if redisClient != nil {
		checks["redis"] = httpAdapter.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	handler := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		TicketService:      ticketService,
		ChatService:        chatService,
		CallService:        callService,
		SpeechService:      speechService,
		DirectoryService:   directoryService,
		ReportService:      reportService,
		Bus:                bus,
		Hub:                hub,
		TokenManager:       auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL),
		HealthChecks:       checks,
		Version:            cfg.App.Version,
		MediaRoot:          blobs.Root(),
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		WebSocket: httpAdapter.WebSocketConfig{
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			AllowAllOrigins: cfg.IsDevelopment() && len(cfg.WebSocket.AllowedOrigins) == 0,
		},
		FeedHeartbeat: cfg.Realtime.FeedHeartbeat,
		RateLimiter:   generalRateLimiter,
		AIRateLimiter: aiRateLimiter,
		Logger:        logger,
	})

	// 10. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests, then drain background routing and notifications.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	chatService.Shutdown()
	ticketService.Shutdown()

	stopHub()
	<-hubDone

	if generalRateLimiter != nil {
		generalRateLimiter.Stop()
	}
	if aiRateLimiter != nil {
		aiRateLimiter.Stop()
	}

	logger.Info("server shutdown complete")
}

func openRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositories, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			users:     memory.NewUserRepository(store),
			tickets:   memory.NewTicketRepository(store),
			messages:  memory.NewMessageRepository(store),
			analytics: memory.NewAnalyticsRepository(store),
			tx:        memory.NewTransactionManager(store),
			ping:      httpAdapter.PingFunc(func(context.Context) error { return nil }),
			close:     func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			return nil, err
		}
		logger.Info("database migrations applied", "source", cfg.Database.MigrationsPath)
	}

	pool, err := postgres.Connect(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	return &repositories{
		users:     postgres.NewUserRepository(pool),
		tickets:   postgres.NewTicketRepository(pool),
		messages:  postgres.NewMessageRepository(pool),
		analytics: postgres.NewAnalyticsRepository(pool),
		tx:        postgres.NewTransactionManager(pool),
		ping:      httpAdapter.PingFunc(pool.Ping),
		close:     pool.Close,
	}, nil
}
