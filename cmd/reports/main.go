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

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/civic-reports/internal/notifications"
	"github.com/richxcame/civic-reports/internal/reports"
	"github.com/richxcame/civic-reports/internal/reputation"
	"github.com/richxcame/civic-reports/internal/verification"
	"github.com/richxcame/civic-reports/pkg/config"
	"github.com/richxcame/civic-reports/pkg/database"
	"github.com/richxcame/civic-reports/pkg/eventbus"
	"github.com/richxcame/civic-reports/pkg/health"
	"github.com/richxcame/civic-reports/pkg/logger"
	"github.com/richxcame/civic-reports/pkg/middleware"
	"github.com/richxcame/civic-reports/pkg/ratelimit"
	"github.com/richxcame/civic-reports/pkg/redis"
	"github.com/richxcame/civic-reports/pkg/resilience"
	"github.com/richxcame/civic-reports/pkg/secrets"
	"github.com/richxcame/civic-reports/pkg/storage"
	"github.com/richxcame/civic-reports/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName     = "reports"
	shutdownTimeout = 30 * time.Second
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("reports service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	sentryEnabled := cfg.Observability.SentryDSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Observability.SentryDSN,
			Environment: cfg.Server.Environment,
			Release:     serviceName + "@" + version,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: serviceName,
		Environment: cfg.Server.Environment,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		SampleRatio: 1,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	if err := resolveSecrets(ctx, cfg); err != nil {
		return err
	}

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(pool)
	logger.Info("Connected to PostgreSQL")

	checks := map[string]func() error{"database": health.PoolChecker(pool)}

	mediaStore, closeStorage, err := newObjectStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.New(eventbus.Config{URL: cfg.NATS.URL, Name: serviceName})
		if err != nil {
			return err
		}
		defer bus.Close()
		checks["nats"] = bus.Healthy
	}

	var redisClient *redis.Client
	if cfg.Reputation.Backend == "redis" || cfg.RateLimit.Enabled {
		redisClient, err = redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		checks["redis"] = health.RedisChecker(redisClient.Client)
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))
	}

	ledger, closeLedger, err := newLedger(ctx, cfg, redisClient, checks)
	if err != nil {
		return err
	}
	defer closeLedger()

	classifierTimeout := time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second
	classifierBreaker := resilience.NewCircuitBreaker(
		resilience.BuildSettings("classifier", time.Minute, 30*time.Second, 5, 1), nil)
	verifier := verification.NewVerifier(
		verification.NewGeminiClassifier(cfg.Classifier.BaseURL, cfg.Classifier.APIKey, cfg.Classifier.Model, classifierTimeout),
		classifierBreaker,
		classifierTimeout,
	)

	maxMediaBytes := cfg.Storage.MaxUploadMB << 20
	opts := []reports.Option{reports.WithMaxMediaBytes(maxMediaBytes)}

	if notifier := newNotifier(cfg.Notifications); notifier != nil {
		opts = append(opts, reports.WithNotifier(notifier))
	}

	rewards := reputation.NewRewardPolicy(ledger, cfg.Reputation.VerifiedXP, cfg.Reputation.PendingXP)
	switch {
	case bus != nil:
		// rewards ride the bus so other consumers see the same events
		opts = append(opts, reports.WithEventPublisher(bus))
		if rewards.Enabled() {
			if err := reputation.NewEventHandler(rewards).RegisterSubscriptions(ctx, bus); err != nil {
				return err
			}
		}
	case rewards.Enabled():
		opts = append(opts, reports.WithRewardHook(rewards))
	}

	pipeline := reports.NewPipeline(
		verifier,
		reports.NewObjectMediaStore(mediaStore, resilience.DefaultRetryConfig(),
			reports.WithUploadTimeouts(
				time.Duration(cfg.Storage.UploadTimeoutSeconds)*time.Second,
				time.Duration(cfg.Storage.UploadAttemptTimeoutSeconds)*time.Second,
			),
		),
		reports.NewRepository(pool),
		reports.Policy{
			FraudThreshold:      cfg.Policy.FraudRejectThreshold,
			ConfidenceThreshold: cfg.Policy.VerifyConfidenceThreshold,
		},
		opts...,
	)

	router := newRouter(routerDeps{
		serviceName:    serviceName,
		version:        version,
		corsOrigins:    cfg.Server.AllowedOrigins(),
		requestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		maxMediaBytes:  maxMediaBytes,
		sentry:         sentryEnabled,
		submitLimit:    newSubmitLimit(cfg.RateLimit, redisClient),
		reports:        reports.NewHandler(pipeline, maxMediaBytes),
		reputation:     reputation.NewHandler(ledger),
		checks:         checks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Reports service starting", zap.String("port", cfg.Server.Port), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	// in-flight notifications and rewards finish before connections close
	done := make(chan struct{})
	go func() {
		pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("side effects still running at shutdown")
	}

	logger.Info("Reports service stopped")
	return nil
}

// resolveSecrets swaps secret references in the config for their values.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	bindings := []secrets.Binding{
		{Name: "database password", Type: secrets.SecretDatabase, Target: &cfg.Database.Password},
		{Name: "classifier api key", Type: secrets.SecretClassifier, Target: &cfg.Classifier.APIKey},
		{Name: "resend api key", Type: secrets.SecretEmail, Target: &cfg.Notifications.ResendAPIKey},
		{Name: "twilio auth token", Type: secrets.SecretTwilio, Target: &cfg.Notifications.TwilioAuthToken},
		{Name: "storage secret key", Type: secrets.SecretStorage, Target: &cfg.Storage.SecretKey},
	}

	if cfg.Secrets.Provider == "" {
		return secrets.ResolveBindings(ctx, nil, bindings)
	}

	manager, err := secrets.NewManager(ctx, secrets.Config{
		Provider: secrets.ProviderType(cfg.Secrets.Provider),
		CacheTTL: time.Duration(cfg.Secrets.CacheTTLSeconds) * time.Second,
		Vault: secrets.VaultConfig{
			Address:   cfg.Secrets.VaultAddress,
			Token:     cfg.Secrets.VaultToken,
			MountPath: cfg.Secrets.VaultMount,
		},
		AWS: secrets.AWSConfig{Region: cfg.Secrets.AWSRegion},
		GCP: secrets.GCPConfig{
			ProjectID:       cfg.Secrets.GCPProjectID,
			CredentialsFile: cfg.Secrets.GCPCredentials,
		},
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	return secrets.ResolveBindings(ctx, manager, bindings)
}

func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, func(), error) {
	switch storage.Provider(cfg.Provider) {
	case storage.ProviderGCS:
		gcs, err := storage.NewGCSStorage(ctx, storage.GCSConfig{
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.CredentialsFile,
			BaseURL:         cfg.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { _ = gcs.Close() }, nil
	default:
		s3, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			BaseURL:   cfg.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, func() {}, nil
	}
}

// newLedger opens the configured ledger backend. The redis backend reuses
// the shared client.
func newLedger(ctx context.Context, cfg *config.Config, client *redis.Client, checks map[string]func() error) (*reputation.Ledger, func(), error) {
	missing := reputation.MissingProfilePolicy(cfg.Reputation.MissingProfile)

	if cfg.Reputation.Backend == "redis" {
		logger.Info("Reputation ledger on Redis")
		return reputation.NewLedger(reputation.NewRedisStore(client), missing), func() {}, nil
	}

	db, err := database.OpenSQL(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	checks["ledger_database"] = health.DatabaseChecker(db)
	return reputation.NewLedger(reputation.NewPostgresStore(db), missing), func() { _ = db.Close() }, nil
}

// newSubmitLimit returns the per-client submission limiter, or nil when rate
// limiting is off.
func newSubmitLimit(cfg config.RateLimitConfig, client *redis.Client) gin.HandlerFunc {
	if !cfg.Enabled || client == nil {
		return nil
	}
	limiter := ratelimit.NewLimiter(client, cfg)
	rule := limiter.SubmitRule()
	logger.Info("Submission rate limit enabled",
		zap.Int("limit", rule.Limit), zap.Int("burst", rule.Burst), zap.Duration("window", rule.Window))
	return middleware.RateLimit(limiter, "submit", rule)
}

// newNotifier builds the notification service from whichever channels are
// configured, or returns nil when none are.
func newNotifier(cfg config.NotificationsConfig) *notifications.Service {
	var (
		email notifications.EmailSender
		sms   notifications.SMSSender
	)
	if cfg.ResendAPIKey != "" {
		email = notifications.NewEmailClient("", cfg.ResendAPIKey, cfg.ResendFrom)
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		sms = notifications.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}
	if email == nil && sms == nil {
		logger.Info("No notification channel configured, submitters will not be notified")
		return nil
	}

	svc := notifications.NewService(email, sms)
	svc.SetCircuitBreakers(
		resilience.NewCircuitBreaker(resilience.BuildSettings("notifications-email", time.Minute, 30*time.Second, 5, 1), nil),
		resilience.NewCircuitBreaker(resilience.BuildSettings("notifications-sms", time.Minute, 30*time.Second, 5, 1), nil),
	)
	return svc
}
