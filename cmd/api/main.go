package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citaflow/citaflow/cmd/mainconfig"
	"github.com/citaflow/citaflow/internal/ai"
	"github.com/citaflow/citaflow/internal/api/router"
	"github.com/citaflow/citaflow/internal/appointments"
	appconfig "github.com/citaflow/citaflow/internal/config"
	"github.com/citaflow/citaflow/internal/conversation"
	"github.com/citaflow/citaflow/internal/dispatch"
	"github.com/citaflow/citaflow/internal/http/handlers"
	"github.com/citaflow/citaflow/internal/intent"
	"github.com/citaflow/citaflow/internal/leads"
	"github.com/citaflow/citaflow/internal/messaging"
	"github.com/citaflow/citaflow/internal/messaging/whatsappclient"
	observemetrics "github.com/citaflow/citaflow/internal/observability/metrics"
	"github.com/citaflow/citaflow/internal/schedule"
	"github.com/citaflow/citaflow/internal/tasks"
	"github.com/citaflow/citaflow/internal/timeparse"
	"github.com/citaflow/citaflow/internal/webchat"
	"github.com/citaflow/citaflow/pkg/logging"
)

func main() {
	// Local development convenience; production sets real env vars.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting citaflow API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		logger.Error("invalid business timezone", "error", err, "tz", cfg.BusinessTimezone)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := mainconfig.NewRedisClient(cfg)
	defer redisClient.Close()

	metrics := observemetrics.NewTurnMetrics(nil)

	// Repositories.
	apptRepo := appointments.NewRepository(pool)
	scheduleRepo := schedule.NewRepository(pool)
	leadsRepo := leads.NewRepository(pool)
	taskStore := tasks.NewStore(pool)
	interactions := conversation.NewInteractionStore(pool)

	// AI clients: Bedrock primary, Gemini fallback when configured.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("loading AWS config", "error", err)
		os.Exit(1)
	}
	var aiClient ai.Client = ai.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("creating gemini client", "error", err)
			os.Exit(1)
		}
		fallback := ai.NewFallbackClient(aiClient, gemini, logger)
		fallback.OnFallback(metrics.ObserveLLMFallback)
		aiClient = fallback
	}

	// Domain engines.
	availability := schedule.NewEngine(scheduleRepo, apptRepo, loc, logger).WithMetrics(metrics)
	extractor := timeparse.NewExtractor(aiClient, cfg.BedrockModelID, logger)
	taskEngine := tasks.NewEngine(taskStore, apptRepo, availability, extractor, loc, logger)
	detector := intent.NewDetector(aiClient, cfg.BedrockModelID, logger)

	// Outbound delivery.
	gateway, err := whatsappclient.New(whatsappclient.Config{
		BaseURL:  cfg.WhatsAppBaseURL,
		APIKey:   cfg.WhatsAppAPIKey,
		SenderID: cfg.WhatsAppSenderID,
		Logger:   logger.Logger,
	})
	if err != nil {
		logger.Error("creating whatsapp client", "error", err)
		os.Exit(1)
	}

	execStore, err := dispatch.OpenExecutionStore(cfg.DatabaseURL)
	if err != nil {
		logger.Error("opening execution store", "error", err)
		os.Exit(1)
	}
	defer execStore.Close()

	registry := dispatch.NewRegistry()
	dispatch.RegisterLookups(registry, apptRepo, loc)
	dispatcher := dispatch.NewDispatcher(registry, execStore, gateway, cfg.MediaSendDelay, logger).
		WithMetrics(metrics).
		WithTranscript(interactions)

	// Conversation pipeline.
	turnLock := conversation.NewTurnLock(redisClient, cfg.TurnLockTTL)
	turnEngine := conversation.NewEngine(turnLock, leadsRepo, taskStore, taskEngine, detector, interactions, dispatcher, logger).
		WithMetrics(metrics)

	var queue conversation.Queue
	if cfg.UseMemoryQueue {
		queue = conversation.NewMemoryQueue(0)
	} else {
		queue = conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL)
	}
	orchestrator := conversation.NewOrchestrator(turnEngine, queue, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
	)

	// HTTP surface.
	dedupe := messaging.NewDedupe(redisClient, 24*time.Hour)
	webhookHandler := handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{
		Publisher: orchestrator,
		Resolver:  leadsRepo,
		Processed: dedupe,
		Logger:    logger,
		Metrics:   metrics,
		Token:     cfg.WebhookToken,
	})
	widget := webchat.NewHandler(orchestrator, interactions, logger)
	callHandler := handlers.NewFunctionCallHandler(handlers.FunctionCallConfig{
		Dispatcher: dispatcher,
		Loader:     leadsRepo,
		Widget:     widget,
		Logger:     logger,
		Metrics:    metrics,
		Token:      cfg.WebhookToken,
	})
	opsHandler := handlers.NewOpsHandler(execStore, logger, cfg.WebhookToken)

	r := router.New(&router.Config{
		Logger:             logger,
		WhatsAppWebhook:    webhookHandler,
		FunctionCalls:      callHandler,
		Ops:                opsHandler,
		WidgetSocket:       widget.WebSocket(),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookRate:        cfg.WebhookRate,
		WebhookBurst:       cfg.WebhookBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown", "error", err)
	}

	logger.Info("server stopped")
}
