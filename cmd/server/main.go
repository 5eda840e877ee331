package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agora-community/agora/internal/api"
	"github.com/agora-community/agora/internal/cache"
	"github.com/agora-community/agora/internal/classifier"
	"github.com/agora-community/agora/internal/content"
	"github.com/agora-community/agora/internal/db"
	"github.com/agora-community/agora/internal/hotscore"
	"github.com/agora-community/agora/internal/moderation"
	"github.com/agora-community/agora/internal/notify"
	"github.com/agora-community/agora/internal/outbox"
	"github.com/agora-community/agora/internal/penalty"
	"github.com/agora-community/agora/internal/ratelimit"
	"github.com/agora-community/agora/internal/report"
	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Agora API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	hotCache, err := cache.New(&cfg.Redis, cfg.HotScore.CacheTTL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer hotCache.Close()

	repo := db.NewRepository(database.DB)
	users := db.NewUserRepository(repo)
	posts := db.NewPostRepository(repo)
	notifications := db.NewNotificationRepository(repo)

	notifier := notify.NewService(notifications)
	tracker := penalty.NewTracker(users, cfg.Moderation.RejectLimit)
	moderator := moderation.NewService(
		db.NewTargetRepository(repo),
		db.NewReportRepository(repo),
		notifications,
		notifier,
		tracker,
		classifier.New(&cfg.Classifier),
	)

	dispatcher := outbox.NewDispatcher(db.NewTaskRepository(repo), &cfg.Moderation)
	dispatcher.Register(outbox.KindClassify, outbox.ClassifyHandler(moderator))
	dispatcher.RegisterDead(outbox.KindClassify, outbox.ClassifyDeadHandler(moderator))

	contentService := content.NewService(
		users,
		posts,
		db.NewCommentRepository(repo),
		db.NewFollowRepository(repo),
		ratelimit.NewUserLimiter(db.NewActivityRepository(repo), cfg.RateLimit),
		notifier,
		hotscore.NewDetector(posts, hotCache, &cfg.HotScore),
		dispatcher,
		content.Options{InviteRequired: cfg.Auth.InviteRequired, RejectLimit: cfg.Moderation.RejectLimit},
	)

	edgeLimiter := ratelimit.NewWindowLimiter(cfg.RateLimit.SweepInterval)
	defer edgeLimiter.Stop()

	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	apiRouter := api.NewRouter(api.Services{
		Content:    contentService,
		Moderation: moderator,
		Reports:    report.NewAggregator(db.NewReportRepository(repo), cfg.Moderation.ReportThreshold, cfg.Moderation.DedupeReporter),
		Inbox:      notifier,
		Users:      users,
	}, api.NewAuthenticator(cfg.Auth.JWTSecret), edgeLimiter, cfg.RateLimit, map[string]api.HealthChecker{
		"database": database,
		"cache":    hotCache,
	})
	apiRouter.SetupRoutes(engine)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	servers := []*http.Server{srv}
	if cfg.Telemetry.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Telemetry.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		s := s
		g.Go(func() error {
			logger.Info("Server starting", zap.String("address", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", s.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return dispatcher.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server exited with error", zap.Error(err))
		return
	}

	logger.Info("Server exited")
}
