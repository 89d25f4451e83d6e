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

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"buildInPublicAPI/handlers"
	"buildInPublicAPI/internal/config"
	"buildInPublicAPI/internal/database"
	"buildInPublicAPI/internal/github"
	"buildInPublicAPI/internal/mailer"
	"buildInPublicAPI/internal/metrics"
	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/workers"
	"buildInPublicAPI/middleware"
	"buildInPublicAPI/services"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// app holds everything routes need and everything shutdown must close.
type app struct {
	cfg *config.Config

	health        *handlers.HealthHandler
	profiles      *handlers.ProfileHandler
	posts         *handlers.PostHandler
	feed          *handlers.FeedHandler
	follows       *handlers.FollowHandler
	startups      *handlers.StartupHandler
	progress      *handlers.ProgressHandler
	sponsors      *handlers.SponsorHandler
	notifications *handlers.NotificationHandler
	paddle        *handlers.PaddleHandler
	webhooks      *handlers.WebhookHandler

	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter

	closers []func()
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ConfigureLogging()

	clerk.SetKey(cfg.ClerkSecretKey)
	log.Info("Clerk initialized successfully")

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dbPool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing database connection pool...")
		dbPool.Close()
	}()

	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	metrics.Register(prometheus.DefaultRegisterer)

	a, err := buildApp(ctx, cfg, dbPool)
	if err != nil {
		return err
	}
	defer a.close()

	stopSweeper := make(chan struct{})
	go a.limiter.Run(stopSweeper)
	defer close(stopSweeper)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Got signal, shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}

	log.Info("Server shutdown complete")
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*app, error) {
	loc := cfg.Location()
	a := &app{cfg: cfg}

	notificationPool := workers.NewPool(workers.Options{
		Workers:     2,
		QueueSize:   256,
		MaxAttempts: 2,
		Backoff:     500 * time.Millisecond,
	})
	notificationService := services.NewNotificationService(db, notificationPool)
	if fcm, err := notification.NewFCMService(ctx, cfg.FCMCredentialsFile); err != nil {
		log.WithError(err).Warn("Could not initialize FCM, push notifications disabled")
	} else {
		notificationService.SetPushProvider(fcm)
		log.Info("FCM Push Provider initialized successfully")
	}

	streakService := services.NewStreakService(db, loc, time.Now)
	dispatcher := services.NewActivityDispatcher(streakService, workers.Options{
		Workers:     cfg.ActivityWorkers,
		QueueSize:   1024,
		MaxAttempts: cfg.ActivityMaxAttempts,
		Backoff:     200 * time.Millisecond,
	})
	// Dispatcher drains before the notification pool it may push to.
	a.closers = append(a.closers, dispatcher.Close, notificationPool.Close)

	achievementService, err := services.NewAchievementService(db, dispatcher, notificationService)
	if err != nil {
		a.close()
		return nil, err
	}
	dispatcher.SetAchievementEvaluator(achievementService)

	contributions := github.NewCache(github.NewClient(cfg.GitHubToken, cfg.GitHubGraphQLURL), cfg.ContributionCacheTTL)

	var mail mailer.Mailer = mailer.NoopMailer{}
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		mail = mailer.NewMailgunMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailSender)
	}

	sponsorOpts := services.SponsorServiceOptions{
		Sandbox:      cfg.PaddleSandbox(),
		SuccessURL:   cfg.PublicBaseURL + "/api/v1/sponsor/success",
		Mailer:       mail,
		Notifier:     notificationService,
		Achievements: dispatcher,
	}
	if cfg.PaddleAPIKey != "" {
		baseURL := paddle.ProductionBaseURL
		if cfg.PaddleSandbox() {
			baseURL = paddle.SandboxBaseURL
		}
		client, err := paddle.New(cfg.PaddleAPIKey, paddle.WithBaseURL(baseURL))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize paddle: %w", err)
		}
		sponsorOpts.Paddle = client
	}

	profileService := services.NewProfileService(db, services.ClerkIdentityFetcher{}, cfg.PublicBaseURL)
	sponsorService := services.NewSponsorService(db, sponsorOpts)

	webhooks, err := handlers.NewWebhookHandler(profileService, cfg.ClerkWebhookSecret, sponsorService, cfg.StripeWebhookSecret)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid CLERK_WEBHOOK_SECRET: %w", err)
	}

	a.health = handlers.NewHealthHandler(db)
	a.profiles = handlers.NewProfileHandler(profileService)
	a.posts = handlers.NewPostHandler(services.NewPostService(db, dispatcher, notificationService))
	a.feed = handlers.NewFeedHandler(services.NewFeedService(db, time.Now))
	a.follows = handlers.NewFollowHandler(services.NewFollowService(db, notificationService))
	a.startups = handlers.NewStartupHandler(services.NewStartupService(db, dispatcher, dispatcher, loc, time.Now))
	a.progress = handlers.NewProgressHandler(
		profileService,
		streakService,
		achievementService,
		services.NewGitHubService(db, contributions, dispatcher, loc, time.Now),
	)
	a.sponsors = handlers.NewSponsorHandler(sponsorService)
	a.notifications = handlers.NewNotificationHandler(notificationService)
	a.paddle = handlers.NewPaddleHandler(sponsorService, cfg.PaddleWebhookSecret)
	a.webhooks = webhooks

	a.auth = middleware.NewAuthenticator(middleware.ClerkVerify, profileService)
	a.limiter = middleware.NewRateLimiter(10, 30)
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		a.close()
		return nil, err
	}
	a.limiter.TrustProxies(proxies)

	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
