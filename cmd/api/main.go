package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/silverland/property-agent/internal/agent"
	"github.com/silverland/property-agent/internal/api/router"
	"github.com/silverland/property-agent/internal/bookings"
	appconfig "github.com/silverland/property-agent/internal/config"
	"github.com/silverland/property-agent/internal/leads"
	"github.com/silverland/property-agent/internal/listings"
	"github.com/silverland/property-agent/internal/llm"
	"github.com/silverland/property-agent/internal/matching"
	"github.com/silverland/property-agent/internal/notify"
	"github.com/silverland/property-agent/internal/observability/metrics"
	"github.com/silverland/property-agent/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBTimeout)
	if err := pool.Ping(pingCtx); err != nil {
		cancel()
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}
	cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// LLM stack: Bedrock primary, Gemini fallback when a key is configured.
	var llmClient llm.Client = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = gemini.Close() }()
		llmClient = llm.NewFallbackClient(llmClient, gemini, logger)
		logger.Info("gemini fallback enabled", "model", cfg.GeminiModelID)
	}
	llmClient = llm.NewTimeoutClient(llmClient, cfg.LLMTimeout)

	listingRepo := listings.NewPostgresRepository(pool)
	textToSQL := listings.NewTextToSQL(llmClient, pool, logger)
	searchEngine := matching.NewEngine(listingRepo, textToSQL, logger)

	leadRepo := leads.NewPostgresRepository(pool)
	bookingRepo := bookings.NewPostgresRepository(pool)

	var emailSender notify.EmailSender = notify.NoopSender{}
	if cfg.SendGridAPIKey != "" {
		emailSender = notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, logger)
	}
	bookingSvc := bookings.NewService(bookingRepo, leadRepo, emailSender, logger)

	registry := prometheus.NewRegistry()
	convMetrics := metrics.NewConversationMetrics(registry)

	classifier := agent.NewIntentClassifier(llmClient, cfg.BedrockModelID, logger)
	extractor := agent.NewPreferenceExtractor(llmClient, cfg.BedrockModelID, logger)
	responder := agent.NewResponder(llmClient, cfg.BedrockModelID, logger)
	convRouter := agent.NewRouter(classifier, extractor, searchEngine, leadRepo, bookingSvc, responder, logger, convMetrics)

	stateStore := agent.NewRedisStateStore(redisClient, cfg.StateTTL)
	processor := agent.NewTurnProcessor(stateStore, convRouter, logger, 60*time.Second)
	engine := agent.NewEngine(processor, stateStore, responder, logger)

	var orchestrator *agent.Orchestrator
	if cfg.UseMemoryQueue {
		logger.Info("using in-memory turn queue")
		orchestrator = agent.NewOrchestrator(engine, agent.NewMemoryQueue(64), logger, agent.WithWorkerCount(cfg.WorkerCount))
	} else {
		if cfg.TurnQueueURL == "" {
			logger.Error("TURN_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
			os.Exit(1)
		}
		logger.Info("using SQS turn queue", "queue_url", cfg.TurnQueueURL)
		orchestrator = agent.NewOrchestrator(engine, agent.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL), logger, agent.WithWorkerCount(cfg.WorkerCount))
	}
	chatHandler := agent.NewHandler(orchestrator, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// loadAWSConfig centralizes AWS SDK initialization. An endpoint override
// points SQS at LocalStack during local development.
func loadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				if service == sqs.ServiceID {
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				}
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			},
		)
	}

	return awsCfg, nil
}
