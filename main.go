package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aamamun24/FineMed-Server/common/auth"
	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/common/logger"
	"github.com/aamamun24/FineMed-Server/common/middleware"
	"github.com/aamamun24/FineMed-Server/consumer"
	"github.com/aamamun24/FineMed-Server/controllers"
	"github.com/aamamun24/FineMed-Server/database"
	"github.com/aamamun24/FineMed-Server/kafka"
	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/aamamun24/FineMed-Server/repository"
	"github.com/aamamun24/FineMed-Server/routes"
	"github.com/aamamun24/FineMed-Server/sender"
	"github.com/aamamun24/FineMed-Server/services"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(ctx)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	awsCfg, err := awspkg.LoadConfig(ctx, cfg.AWSOptions())
	if err != nil {
		panic(err.Error())
	}

	log, err := initLogger(ctx, cfg, awsCfg)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	decimal.MarshalJSONWithoutQuotes = true

	// --- 1. Storage ---

	db, err := database.ConnectPostgres(ctx, database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
		TimeZone: cfg.PostgresTimeZone,
	}, log, &models.User{}, &models.Product{}, &models.Order{}, &models.OrderItem{}, &models.Review{}, &models.NotificationLog{})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("Redis unavailable, running without cache and notification dedup", zap.Error(err))
			rdb = nil
		}
	}

	userRepo := repository.NewGormUserRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	reviewRepo := repository.NewGormReviewRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)

	metrics := awspkg.NewMetricsClient(awsCfg, "FineMed", cfg.MetricsEnabled)

	var stock repository.InventoryRepository = repository.NewGormInventoryRepository(db)
	external := cfg.InventoryBackend == "dynamodb"
	if external {
		stock = repository.NewDynamoInventoryRepository(dynamodb.NewFromConfig(awsCfg), cfg.InventoryTable)
		log.Info("Using DynamoDB stock counters", zap.String("table", cfg.InventoryTable))
	}
	inventory := services.NewInventoryService(stock, metrics, log, cfg.LowStockThreshold, external)

	// --- 2. Messaging ---

	var (
		kafkaSink services.KafkaPublisher
		topicSink services.TopicPublisher
		producer  *kafka.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic, log)
		kafkaSink = producer
	}
	if cfg.SNSOrderTopicArn != "" {
		topicSink = awspkg.NewSNSClient(awsCfg, cfg.SNSOrderTopicArn)
	}
	var events services.EventPublisher = services.NoopPublisher{}
	if kafkaSink != nil || topicSink != nil {
		events = services.NewFanoutPublisher(kafkaSink, topicSink, log)
	}

	var email sender.EmailSender
	if cfg.SMTPHost != "" {
		smtpSender, err := sender.NewSMTPSender(sender.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort, Username: cfg.SMTPUser, Password: cfg.SMTPPass, From: cfg.SMTPFrom,
		})
		if err != nil {
			log.Fatal("Invalid SMTP configuration", zap.Error(err))
		}
		email = smtpSender
	} else {
		log.Warn("SMTP_HOST not set, emails are only logged")
		email = sender.NewLogSender(func(channel, to, subject string) {
			log.Info("notification not sent", zap.String("channel", channel), zap.String("to", to), zap.String("subject", subject))
		})
	}
	var sms sender.SMSSender
	if cfg.TwilioAccountSID != "" {
		twilio, err := sender.NewTwilioSender(sender.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID, AuthToken: cfg.TwilioAuthToken, FromNumber: cfg.TwilioFromNumber,
		})
		if err != nil {
			log.Fatal("Invalid Twilio configuration", zap.Error(err))
		}
		sms = twilio
	}

	notificationService, err := services.NewNotificationService(notificationRepo, email, sms, metrics, log)
	if err != nil {
		log.Fatal("Failed to build notification service", zap.Error(err))
	}

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()

	var notifier services.Notifier = notificationService
	if cfg.NotificationQueueURL != "" {
		queue := awspkg.NewSQSClient(awsCfg, cfg.NotificationQueueURL, log)
		notifier = services.NewQueueNotifier(queue)
		go consumer.NewNotificationConsumer(queue, notificationService, log).Start(consumerCtx)
	}

	// --- 3. Services ---

	tokens, err := auth.NewTokenService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		log.Fatal("Failed to build token service", zap.Error(err))
	}

	var (
		cache services.ProductCache
		dedup services.IdempotencyStore
	)
	if rdb != nil {
		cache = services.NewCacheManager(rdb, 10*time.Minute, log)
		dedup = services.NewRedisIdempotencyStore(rdb)
	}

	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, gateway payments will fail")
	}
	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, log)

	var uploader services.PrescriptionUploader
	if cfg.PrescriptionBucket != "" {
		uploader = awspkg.NewS3Presigner(awsCfg, cfg.PrescriptionBucket)
	}

	authService := services.NewAuthService(userRepo, tokens, log)
	userService := services.NewUserService(userRepo, cfg.BcryptCost, log)
	productService := services.NewProductService(productRepo, inventory, cache, log)
	reviewService := services.NewReviewService(reviewRepo, userRepo, orderRepo)
	orderService := services.NewOrderService(services.OrderDeps{
		Users:     userRepo,
		Products:  productRepo,
		Orders:    orderRepo,
		Inventory: inventory,
		Gateway:   gateway,
		Notifier:  notifier,
		Events:    events,
		Uploader:  uploader,
		Metrics:   metrics,
		Log:       log,
	}, services.OrderConfig{
		Currency:       cfg.PaymentCurrency,
		PaymentTimeout: cfg.PaymentTimeout,
		PublicBaseURL:  cfg.PublicBaseURL,
	})
	paymentService := services.NewPaymentService(orderRepo, gateway, dedup, events, notifier, metrics, cfg.FrontendURL, log)

	// --- 4. HTTP ---

	checks := map[string]controllers.Pinger{
		"postgres": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	limiterStop := make(chan struct{})
	defer close(limiterStop)

	r := gin.New()
	r.Use(
		logger.RequestID(),
		apperrors.Recovery(log),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RequestLogger(log, "/health"),
		middleware.MetricsMiddleware(metrics),
		requestTimeout(30*time.Second),
		apperrors.ErrorMiddleware(log),
	)
	r.NoRoute(func(c *gin.Context) {
		apperrors.Write(c, apperrors.ErrNotFound.WithMessage("API not found"))
	})

	routes.RegisterRoutes(r, routes.Controllers{
		Auth:         controllers.NewAuthController(authService, cfg.JWTRefreshTTL, cfg.IsProduction()),
		Users:        controllers.NewUserController(userService),
		Products:     controllers.NewProductController(productService),
		Orders:       controllers.NewOrderController(orderService),
		Payments:     controllers.NewPaymentController(paymentService),
		Reviews:      controllers.NewReviewController(reviewService),
		Notification: controllers.NewNotificationController(notificationService),
		Health:       controllers.NewHealthController(checks),
	}, routes.Guards{
		Authenticate: func(roles ...models.Role) gin.HandlerFunc {
			return middleware.Authenticate(tokens, userRepo, roles...)
		},
		AuthLimit: middleware.RateLimitMiddleware(20, 5, limiterStop),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("FineMed server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down FineMed server...")
	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("Failed to close Kafka producer", zap.Error(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	log.Info("FineMed server stopped gracefully")
}
