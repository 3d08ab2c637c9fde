// The turn-worker binary drains the turn queue without exposing an HTTP
// surface. Run it alongside the api binary to scale turn processing
// independently of webhook ingestion.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/citaflow/citaflow/cmd/mainconfig"
	"github.com/citaflow/citaflow/internal/ai"
	"github.com/citaflow/citaflow/internal/appointments"
	appconfig "github.com/citaflow/citaflow/internal/config"
	"github.com/citaflow/citaflow/internal/conversation"
	"github.com/citaflow/citaflow/internal/dispatch"
	"github.com/citaflow/citaflow/internal/intent"
	"github.com/citaflow/citaflow/internal/leads"
	"github.com/citaflow/citaflow/internal/messaging/whatsappclient"
	"github.com/citaflow/citaflow/internal/schedule"
	"github.com/citaflow/citaflow/internal/tasks"
	"github.com/citaflow/citaflow/internal/timeparse"
	"github.com/citaflow/citaflow/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting citaflow turn worker", "env", cfg.Env, "workers", cfg.WorkerCount)

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

	apptRepo := appointments.NewRepository(pool)
	scheduleRepo := schedule.NewRepository(pool)
	leadsRepo := leads.NewRepository(pool)
	taskStore := tasks.NewStore(pool)
	interactions := conversation.NewInteractionStore(pool)

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
		aiClient = ai.NewFallbackClient(aiClient, gemini, logger)
	}

	availability := schedule.NewEngine(scheduleRepo, apptRepo, loc, logger)
	extractor := timeparse.NewExtractor(aiClient, cfg.BedrockModelID, logger)
	taskEngine := tasks.NewEngine(taskStore, apptRepo, availability, extractor, loc, logger)
	detector := intent.NewDetector(aiClient, cfg.BedrockModelID, logger)

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
		WithTranscript(interactions)

	turnLock := conversation.NewTurnLock(redisClient, cfg.TurnLockTTL)
	turnEngine := conversation.NewEngine(turnLock, leadsRepo, taskStore, taskEngine, detector, interactions, dispatcher, logger)

	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL)
	orchestrator := conversation.NewOrchestrator(turnEngine, queue, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down turn worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("turn worker shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("turn worker stopped")
}
