package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
)

type Config struct {
	Port   string
	AppEnv string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	BcryptCost       int

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string
	PaymentTimeout      time.Duration
	PublicBaseURL       string
	FrontendURL         string

	InventoryBackend  string
	InventoryTable    string
	LowStockThreshold int

	KafkaBrokers     []string
	OrderEventsTopic string
	SNSOrderTopicArn string

	NotificationQueueURL string
	SMTPHost             string
	SMTPPort             string
	SMTPUser             string
	SMTPPass             string
	SMTPFrom             string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioFromNumber     string

	PrescriptionBucket string
	AllowedOrigins     []string

	AWSRegion         string
	AWSEndpoint       string
	AWSAccessKeyID    string
	AWSSecretKey      string
	AWSUseSecrets     bool
	CloudWatchEnabled bool
	MetricsEnabled    bool
}

// secretGetter is satisfied by the Secrets Manager client.
type secretGetter interface {
	GetJSON(ctx context.Context, name string, dst any) error
}

func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "5000"),
		AppEnv: getEnv("APP_ENV", "development"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Dhaka"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTAccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		JWTAccessTTL:     getEnvDuration("JWT_ACCESS_EXPIRES_IN", time.Hour),
		JWTRefreshTTL:    getEnvDuration("JWT_REFRESH_EXPIRES_IN", 720*time.Hour),
		BcryptCost:       getEnvInt("BCRYPT_COST", 12),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PaymentCurrency:     strings.ToLower(getEnv("PAYMENT_CURRENCY", "bdt")),
		PaymentTimeout:      getEnvDuration("PAYMENT_TIMEOUT", 15*time.Second),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "http://localhost:5000"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),

		InventoryBackend:  getEnv("INVENTORY_BACKEND", "postgres"),
		InventoryTable:    getEnv("INVENTORY_TABLE", "finemed-stock"),
		LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 10),

		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "finemed.orders"),
		SNSOrderTopicArn: os.Getenv("SNS_ORDER_TOPIC_ARN"),

		NotificationQueueURL: os.Getenv("NOTIFICATION_QUEUE_URL"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getEnv("SMTP_PORT", "587"),
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPass:             os.Getenv("SMTP_PASS"),
		SMTPFrom:             os.Getenv("SMTP_FROM"),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:     os.Getenv("TWILIO_FROM_NUMBER"),

		PrescriptionBucket: os.Getenv("PRESCRIPTION_BUCKET"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		AWSRegion:         getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpoint:       os.Getenv("AWS_ENDPOINT"),
		AWSAccessKeyID:    os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSUseSecrets:     os.Getenv("AWS_USE_SECRETS") == "true",
		CloudWatchEnabled: os.Getenv("CLOUDWATCH_ENABLED") == "true",
		MetricsEnabled:    os.Getenv("METRICS_ENABLED") == "true",
	}

	if cfg.AWSUseSecrets {
		awsCfg, err := awspkg.LoadConfig(ctx, cfg.AWSOptions())
		if err != nil {
			return nil, err
		}
		if err := cfg.overlaySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlaySecrets replaces env values with those stored in Secrets Manager.
// Missing secrets leave the env values in place.
func (cfg *Config) overlaySecrets(ctx context.Context, sm secretGetter) error {
	var db map[string]string
	if err := sm.GetJSON(ctx, "finemed/DB_CREDENTIALS", &db); err == nil {
		setIf(&cfg.PostgresUser, db["POSTGRES_USER"])
		setIf(&cfg.PostgresPassword, db["POSTGRES_PASSWORD"])
		setIf(&cfg.PostgresDB, db["POSTGRES_DB"])
		setIf(&cfg.PostgresHost, db["POSTGRES_HOST"])
		setIf(&cfg.PostgresPort, db["POSTGRES_PORT"])
	}

	var app map[string]string
	if err := sm.GetJSON(ctx, "finemed/APP_SECRETS", &app); err == nil {
		setIf(&cfg.JWTAccessSecret, app["JWT_ACCESS_SECRET"])
		setIf(&cfg.JWTRefreshSecret, app["JWT_REFRESH_SECRET"])
		setIf(&cfg.StripeSecretKey, app["STRIPE_SECRET_KEY"])
		setIf(&cfg.StripeWebhookSecret, app["STRIPE_WEBHOOK_SECRET"])
		setIf(&cfg.SMTPPass, app["SMTP_PASS"])
	}
	return nil
}

func (cfg *Config) validate() error {
	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return fmt.Errorf("access and refresh secrets must differ")
	}
	switch cfg.InventoryBackend {
	case "postgres":
	case "dynamodb":
		if cfg.InventoryTable == "" {
			return fmt.Errorf("INVENTORY_TABLE is required for the dynamodb inventory")
		}
	default:
		return fmt.Errorf("unknown INVENTORY_BACKEND %q", cfg.InventoryBackend)
	}
	if cfg.PaymentTimeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT must be positive")
	}
	return nil
}

func (cfg *Config) AWSOptions() awspkg.Options {
	return awspkg.Options{
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.AWSEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
	}
}

func (cfg *Config) IsProduction() bool {
	return cfg.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
