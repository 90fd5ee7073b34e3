package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	NATS          NATSConfig
	Storage       StorageConfig
	Classifier    ClassifierConfig
	Notifications NotificationsConfig
	Policy        PolicyConfig
	Reputation    ReputationConfig
	RateLimit     RateLimitConfig
	Secrets       SecretsConfig
	Observability ObservabilityConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Environment    string
	ServiceName    string
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	CORSOrigins    string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds event bus configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// StorageConfig holds media storage configuration
type StorageConfig struct {
	Provider                    string
	Bucket                      string
	Region                      string
	Endpoint                    string
	AccessKey                   string
	SecretKey                   string
	BaseURL                     string
	CredentialsFile             string
	MaxUploadMB                 int
	UploadTimeoutSeconds        int
	UploadAttemptTimeoutSeconds int
}

// ClassifierConfig holds the multimodal classification client configuration
type ClassifierConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
}

// NotificationsConfig holds email and SMS delivery configuration
type NotificationsConfig struct {
	ResendAPIKey     string
	ResendFrom       string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// PolicyConfig holds the status decision thresholds
type PolicyConfig struct {
	FraudRejectThreshold      float64
	VerifyConfidenceThreshold float64
}

// ReputationConfig holds ledger configuration
type ReputationConfig struct {
	Backend        string // postgres or redis
	MissingProfile string // create or skip
	VerifiedXP     int
	PendingXP      int
}

// RateLimitConfig holds the submission rate limit
type RateLimitConfig struct {
	Enabled       bool
	WindowSeconds int
	SubmitLimit   int
	SubmitBurst   int
	RedisPrefix   string
}

// Window returns the rate limit window, one minute when unset
func (c RateLimitConfig) Window() time.Duration {
	if c.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.WindowSeconds) * time.Second
}

// SecretsConfig selects the secret backend used to resolve secret references
type SecretsConfig struct {
	Provider        string
	VaultAddress    string
	VaultToken      string
	VaultMount      string
	AWSRegion       string
	GCPProjectID    string
	GCPCredentials  string
	CacheTTLSeconds int
}

// ObservabilityConfig holds error reporting and tracing configuration
type ObservabilityConfig struct {
	SentryDSN    string
	OTLPEndpoint string
	OTelEnabled  bool
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			ServiceName:    serviceName,
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 60),
			RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT", 45),
			CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "civic_reports"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Storage: StorageConfig{
			Provider:        getEnv("STORAGE_PROVIDER", "s3"),
			Bucket:          getEnv("STORAGE_BUCKET", "civic-reports"),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:       getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:       getEnv("STORAGE_SECRET_KEY", ""),
			BaseURL:         getEnv("STORAGE_BASE_URL", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			MaxUploadMB:     getEnvAsInt("MAX_UPLOAD_MB", 10),

			UploadTimeoutSeconds:        getEnvAsInt("STORAGE_UPLOAD_TIMEOUT_SECONDS", 15),
			UploadAttemptTimeoutSeconds: getEnvAsInt("STORAGE_UPLOAD_ATTEMPT_TIMEOUT_SECONDS", 5),
		},
		Classifier: ClassifierConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			TimeoutSeconds: getEnvAsInt("CLASSIFIER_TIMEOUT_SECONDS", 20),
		},
		Notifications: NotificationsConfig{
			ResendAPIKey:     getEnv("RESEND_API_KEY", ""),
			ResendFrom:       getEnv("RESEND_FROM", "Civic Reports <onboarding@resend.dev>"),
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Policy: PolicyConfig{
			FraudRejectThreshold:      getEnvAsFloat("FRAUD_REJECT_THRESHOLD", 0.7),
			VerifyConfidenceThreshold: getEnvAsFloat("VERIFY_CONFIDENCE_THRESHOLD", 0.7),
		},
		Reputation: ReputationConfig{
			Backend:        getEnv("LEDGER_BACKEND", "postgres"),
			MissingProfile: getEnv("LEDGER_MISSING_PROFILE", "create"),
			VerifiedXP:     getEnvAsInt("REWARD_VERIFIED_XP", 0),
			PendingXP:      getEnvAsInt("REWARD_PENDING_XP", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			SubmitLimit:   getEnvAsInt("RATE_LIMIT_SUBMIT_LIMIT", 10),
			SubmitBurst:   getEnvAsInt("RATE_LIMIT_SUBMIT_BURST", 5),
			RedisPrefix:   getEnv("RATE_LIMIT_PREFIX", "rl"),
		},
		Secrets: SecretsConfig{
			Provider:        getEnv("SECRETS_PROVIDER", ""),
			VaultAddress:    getEnv("VAULT_ADDR", ""),
			VaultToken:      getEnv("VAULT_TOKEN", ""),
			VaultMount:      getEnv("VAULT_MOUNT", "secret"),
			AWSRegion:       getEnv("SECRETS_AWS_REGION", ""),
			GCPProjectID:    getEnv("SECRETS_GCP_PROJECT_ID", ""),
			GCPCredentials:  getEnv("SECRETS_GCP_CREDENTIALS_FILE", ""),
			CacheTTLSeconds: getEnvAsInt("SECRETS_CACHE_TTL_SECONDS", 300),
		},
		Observability: ObservabilityConfig{
			SentryDSN:    getEnv("SENTRY_DSN", ""),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTelEnabled:  getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Provider {
	case "s3", "gcs":
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider)
	}

	switch c.Reputation.Backend {
	case "postgres", "redis":
	default:
		return fmt.Errorf("unsupported LEDGER_BACKEND %q", c.Reputation.Backend)
	}

	switch c.Reputation.MissingProfile {
	case "create", "skip":
	default:
		return fmt.Errorf("unsupported LEDGER_MISSING_PROFILE %q", c.Reputation.MissingProfile)
	}

	if c.Storage.UploadTimeoutSeconds <= 0 || c.Storage.UploadAttemptTimeoutSeconds <= 0 {
		return fmt.Errorf("storage upload timeouts must be positive")
	}
	if c.Storage.UploadAttemptTimeoutSeconds > c.Storage.UploadTimeoutSeconds {
		return fmt.Errorf("STORAGE_UPLOAD_ATTEMPT_TIMEOUT_SECONDS must not exceed STORAGE_UPLOAD_TIMEOUT_SECONDS")
	}
	// classification and upload run one after the other inside the request
	if budget := c.Classifier.TimeoutSeconds + c.Storage.UploadTimeoutSeconds; c.Server.RequestTimeout <= budget {
		return fmt.Errorf("REQUEST_TIMEOUT (%ds) must exceed CLASSIFIER_TIMEOUT_SECONDS plus STORAGE_UPLOAD_TIMEOUT_SECONDS (%ds)",
			c.Server.RequestTimeout, budget)
	}

	if c.Policy.FraudRejectThreshold < 0 || c.Policy.FraudRejectThreshold > 1 {
		return fmt.Errorf("FRAUD_REJECT_THRESHOLD must be within [0,1]")
	}
	if c.Policy.VerifyConfidenceThreshold < 0 || c.Policy.VerifyConfidenceThreshold > 1 {
		return fmt.Errorf("VERIFY_CONFIDENCE_THRESHOLD must be within [0,1]")
	}

	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the database connection string in URL form, as golang-migrate expects it
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// AllowedOrigins splits CORSOrigins into a list
func (c *ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
