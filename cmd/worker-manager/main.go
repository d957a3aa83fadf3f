// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"icp-pipeline/internal/backend"
	"icp-pipeline/internal/common/camunda"
	"icp-pipeline/internal/common/config"
	"icp-pipeline/internal/common/database"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/common/observability"
	"icp-pipeline/internal/conversation"
	"icp-pipeline/internal/history"
	"icp-pipeline/internal/models"
	"icp-pipeline/internal/pipeline"
	"icp-pipeline/internal/resultindex"
	"icp-pipeline/internal/session"
	"icp-pipeline/pkg/registry"

	// Conversation Workers (2)
	rc "icp-pipeline/internal/workers/conversation/respond-conversation"
	sc "icp-pipeline/internal/workers/conversation/start-conversation"

	// Search Workers (3)
	rp "icp-pipeline/internal/workers/search/run-pipeline"
	sco "icp-pipeline/internal/workers/search/search-companies"
	sl "icp-pipeline/internal/workers/search/search-leads"

	// Export & Ops Workers (2)
	er "icp-pipeline/internal/workers/export/export-results"
	bh "icp-pipeline/internal/workers/ops/backend-health"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	if err := config.ValidateForWorkers(cfg); err != nil {
		zapLog.Fatal("invalid worker configuration", zap.Error(err))
	}

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel meter unavailable, continuing with prometheus only", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	zeebe, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init Redis with retry ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	store := session.NewRedisStore(
		redis.Client,
		cfg.Session.KeyPrefix,
		time.Duration(cfg.Session.TTL)*time.Second,
		time.Duration(cfg.Session.ClaimTTL)*time.Second,
		log,
	)

	runnerOpts := []pipeline.Option{
		pipeline.WithClaimer(store),
		pipeline.WithObservability(obs),
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Pipeline.RecordHistory {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				return err
			}
			return pg.EnsureSchema(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		runnerOpts = append(runnerOpts, pipeline.WithRecorder(history.NewRepository(pg.DB, log)))
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	if cfg.Pipeline.IndexResults {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := esClient.Ping(ctx); err != nil {
				return err
			}
			return esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, resultindex.Mapping)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		runnerOpts = append(runnerOpts, pipeline.WithIndexer(
			resultindex.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log),
		))
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Pipeline components ---
	api := backend.NewClient(
		cfg.Backend.BaseURL,
		config.GetDuration(cfg.Backend.Timeout),
		cfg.Backend.MaxConcurrentRequests,
		log,
	)
	orchestrator := conversation.New(api, store, conversation.Options{
		DefaultMode:     models.ConversationMode(cfg.Pipeline.Mode),
		DefaultMaxTurns: cfg.Pipeline.MaxTurns,
	}, log)
	runner := pipeline.NewRunner(api, log, runnerOpts...)

	reg, err := registry.Default()
	if err != nil {
		zapLog.Fatal("activity registry failed to load", zap.Error(err))
	}
	if err := reg.Validate(); err != nil {
		zapLog.Fatal("activity registry is invalid", zap.Error(err))
	}

	workers := camunda.NewWorkerSet(zeebe.GetClient(), obs, log)
	timeout := func(taskType string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	}

	// --- START: Register Workers ---

	// --- 1. Conversation Workers (2) ---
	workers.Start(sc.TaskType, config.GetWorkerConfig(cfg, sc.TaskType), sc.NewHandler(
		&sc.Config{Timeout: timeout(sc.TaskType), InputSchema: reg.InputSchemaFor(sc.TaskType)},
		orchestrator, obs, log,
	).Handle)

	workers.Start(rc.TaskType, config.GetWorkerConfig(cfg, rc.TaskType), rc.NewHandler(
		&rc.Config{Timeout: timeout(rc.TaskType), InputSchema: reg.InputSchemaFor(rc.TaskType)},
		orchestrator, obs, log,
	).Handle)

	// --- 2. Search Workers (3) ---
	workers.Start(sco.TaskType, config.GetWorkerConfig(cfg, sco.TaskType), sco.NewHandler(
		&sco.Config{
			Timeout:      timeout(sco.TaskType),
			DefaultLimit: cfg.Pipeline.CompanyLimit,
			InputSchema:  reg.InputSchemaFor(sco.TaskType),
		},
		runner, orchestrator, obs, log,
	).Handle)

	workers.Start(sl.TaskType, config.GetWorkerConfig(cfg, sl.TaskType), sl.NewHandler(
		&sl.Config{
			Timeout:            timeout(sl.TaskType),
			MaxLeadsPerCompany: cfg.Pipeline.MaxLeadsPerCompany,
			InputSchema:        reg.InputSchemaFor(sl.TaskType),
		},
		runner, obs, log,
	).Handle)

	workers.Start(rp.TaskType, config.GetWorkerConfig(cfg, rp.TaskType), rp.NewHandler(
		&rp.Config{
			Timeout:            timeout(rp.TaskType),
			CompanyLimit:       cfg.Pipeline.CompanyLimit,
			MaxLeadsPerCompany: cfg.Pipeline.MaxLeadsPerCompany,
			InputSchema:        reg.InputSchemaFor(rp.TaskType),
		},
		runner, orchestrator, obs, log,
	).Handle)

	// --- 3. Export & Ops Workers (2) ---
	workers.Start(er.TaskType, config.GetWorkerConfig(cfg, er.TaskType), er.NewHandler(
		&er.Config{
			Timeout:     timeout(er.TaskType),
			OutputDir:   cfg.Export.OutputDir,
			InputSchema: reg.InputSchemaFor(er.TaskType),
		},
		obs, log,
	).Handle)

	workers.Start(bh.TaskType, config.GetWorkerConfig(cfg, bh.TaskType), bh.NewHandler(
		&bh.Config{Timeout: timeout(bh.TaskType)},
		api, obs, log,
	).Handle)

	zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.TaskTypes()))

	// --- Health & Metrics Server ---
	mux := http.DefaultServeMux
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"zeebe": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := redis.Ping(checkCtx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if pg != nil {
			checks["postgres"] = "ok"
			if err := pg.Ping(checkCtx); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if esClient != nil {
			checks["elasticsearch"] = "ok"
			if err := esClient.Ping(checkCtx); err != nil {
				checks["elasticsearch"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		writeStatus(w, status, map[string]interface{}{
			"status": state,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := cfg.Server.Port
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
