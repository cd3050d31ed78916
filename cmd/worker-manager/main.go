// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"social-support-workers/internal/common/aws"
	"social-support-workers/internal/common/camunda"
	"social-support-workers/internal/common/config"
	"social-support-workers/internal/common/database"
	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/metrics"
	"social-support-workers/internal/common/observability"
	"social-support-workers/internal/pipeline"
	"social-support-workers/internal/server"

	dr "social-support-workers/internal/workers/ai/decision-reasoning"
	ce "social-support-workers/internal/workers/application/check-eligibility"
	cd "social-support-workers/internal/workers/application/consolidate-documents"
	ed "social-support-workers/internal/workers/application/extract-documents"
	md "social-support-workers/internal/workers/application/make-decision"
	nr "social-support-workers/internal/workers/application/notify-review"
	par "social-support-workers/internal/workers/application/persist-application-run"
	pa "social-support-workers/internal/workers/application/process-application"
	trs "social-support-workers/internal/workers/application/track-run-status"
	vad "social-support-workers/internal/workers/application/validate-application-data"
	ias "social-support-workers/internal/workers/data-access/index-application-summary"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...", zap.String("app", cfg.App.Name), zap.String("version", cfg.App.Version))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	m := metrics.New()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      millis(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	redisClient := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	var reasoner md.Reasoner
	if cfg.APIs.Reasoning.BaseURL != "" {
		reasoningCfg := dr.LoadConfig()
		reasoningCfg.BaseURL = cfg.APIs.Reasoning.BaseURL
		reasoningCfg.APIKey = cfg.APIs.Reasoning.APIKey
		reasoningCfg.Timeout = millis(cfg.APIs.Reasoning.Timeout)
		if cfg.APIs.Reasoning.Model != "" {
			reasoningCfg.Model = cfg.APIs.Reasoning.Model
		}
		reasoner = dr.NewHandler(reasoningCfg, log)
	} else {
		zapLog.Warn("reasoning generator not configured, decisions use templated reasoning")
	}

	var embedder ias.Embedder
	if cfg.APIs.Embeddings.Enabled {
		gemini, err := ias.NewGeminiEmbedder(ctx, cfg.APIs.Embeddings.APIKey, cfg.APIs.Embeddings.Model)
		if err != nil {
			zapLog.Warn("embedding client unavailable, indexing without vectors", zap.Error(err))
		} else {
			embedder = gemini
		}
	}

	var (
		publisher nr.Publisher
		mailer    nr.Mailer
	)
	if cfg.Notifications.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}
		publisher = aws.NewSNSClient(awsCfg)
		if cfg.Notifications.SenderEmail != "" {
			mailer = aws.NewSESClient(awsCfg, cfg.Notifications.SenderEmail)
		}
	}

	zapLog.Info("All external service clients initialized")

	// --- Pipeline stages ---
	extractCfg := ed.LoadConfig()
	extractCfg.Concurrency = cfg.Pipeline.ExtractionConcurrency
	extractCfg.BaseURL = cfg.APIs.Extractor.BaseURL
	extractCfg.APIKey = cfg.APIs.Extractor.APIKey
	extractCfg.Timeout = millis(cfg.APIs.Extractor.Timeout)
	extractCfg.MaxRetries = cfg.APIs.Extractor.MaxRetries

	eligibilityCfg, err := ce.ConfigFromScoring(cfg.Scoring.Eligibility)
	if err != nil {
		zapLog.Fatal("program catalogue load failed", zap.Error(err))
	}

	statusCfg := trs.LoadConfig()
	statusCfg.TTL = time.Duration(cfg.Pipeline.StatusTTL) * time.Second
	statusStore := trs.NewStore(statusCfg, redisClient.Client, pg.DB)

	indexCfg := ias.LoadConfig()
	indexCfg.Index = cfg.Database.Elasticsearch.SummaryIndex
	indexCfg.EmbeddingModel = cfg.APIs.Embeddings.Model

	notifyCfg := nr.LoadConfig()
	notifyCfg.Enabled = cfg.Notifications.Enabled
	notifyCfg.ReviewTopicARN = cfg.Notifications.ReviewTopicARN
	notifyCfg.SenderEmail = cfg.Notifications.SenderEmail

	controller, err := pipeline.NewController(pipeline.ConfigFrom(cfg.Pipeline), pipeline.Stages{
		Extractor:    ed.NewHandler(extractCfg, ed.NewHTTPExtractor(extractCfg), log),
		Consolidator: cd.NewHandler(nil, log),
		Validator:    vad.NewHandler(nil, log),
		Eligibility:  ce.NewHandler(eligibilityCfg, log),
		Decision:     md.NewHandler(md.ConfigFromScoring(cfg.Scoring.Decision), reasoner, log),
		Status:       statusStore,
		Persister:    par.NewHandler(nil, pg.DB, log),
		Indexer:      ias.NewHandler(indexCfg, esClient.Client, embedder, log),
		Notifier:     nr.NewHandler(notifyCfg, publisher, mailer, log),
	}, m, obs, log)
	if err != nil {
		zapLog.Fatal("pipeline init failed", zap.Error(err))
	}

	// --- Register job workers ---
	var workers []*camunda.Worker
	if wcfg, ok := cfg.Workers[pa.TaskType]; !ok || wcfg.Enabled {
		processCfg := pa.LoadConfig()
		if ok && wcfg.Timeout > 0 {
			processCfg.Timeout = millis(wcfg.Timeout) * 9 / 10
		}
		handler := pa.NewHandler(processCfg, controller, m, log)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), pa.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       millis(wcfg.Timeout),
			Name:          cfg.App.Name,
		}, handler, log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", pa.TaskType))
	}

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health, Metrics & Status Server ---
	router := server.NewRouter(server.Options{
		Status: trs.NewHandler(statusStore, log),
		Checks: map[string]server.Check{
			"zeebe":         zeebe.HealthCheck,
			"postgres":      pg.Ping,
			"redis":         redisClient.Ping,
			"elasticsearch": esClient.Ping,
		},
	}, log)
	srv := server.New(fmt.Sprintf(":%d", cfg.Server.Port), router)
	go func() {
		zapLog.Info("Ops server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Ops server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping ops server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}
