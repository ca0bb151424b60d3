package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/Suriyanand/financial-document-analyzer/internal/analysis"
	"github.com/Suriyanand/financial-document-analyzer/internal/config"
	"github.com/Suriyanand/financial-document-analyzer/internal/httpapi"
	"github.com/Suriyanand/financial-document-analyzer/internal/jobs"
	"github.com/Suriyanand/financial-document-analyzer/internal/llm"
	"github.com/Suriyanand/financial-document-analyzer/internal/persistence"
	"github.com/Suriyanand/financial-document-analyzer/internal/service"
	"github.com/Suriyanand/financial-document-analyzer/internal/tools"
	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	if level, ok := log.ParseLevel(cfg.Server.LogLevel); ok {
		log.InitLogger(level)
	}

	store, err := persistence.NewSQLiteStore(cfg.Server.DBPath())
	if err != nil {
		log.Fatal("Failed to open job store: %v", err)
	}
	defer store.Close()

	client, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		log.Fatal("Failed to create LLM client: %v", err)
	}

	registry := tools.NewRegistry()
	reader := tools.NewDocumentReaderTool(cfg.Server.UploadsDir(), 0)
	if err := registry.Register(reader); err != nil {
		log.Fatal("Failed to register document reader: %v", err)
	}

	pipeline := analysis.NewAgentPipeline(client, registry, cfg.Agent.MaxIterations)
	defer pipeline.Close()

	// The uploaded document is only needed for the analysis itself; drop it
	// once the run returns, the way the original upload handler did.
	runAndCleanup := jobs.PipelineFunc(func(ctx context.Context, req jobs.PipelineRequest) (*jobs.AnalysisResult, error) {
		result, err := pipeline.Run(ctx, req)
		if rmErr := os.Remove(req.DocumentPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("Failed to remove analyzed document %s: %v", req.DocumentPath, rmErr)
		}
		return result, err
	})

	queue := jobs.NewQueue(store, runAndCleanup,
		jobs.WithWorkerCount(cfg.Jobs.WorkerCount),
		jobs.WithQueueCapacity(cfg.Jobs.QueueCapacity),
		jobs.WithSubmitTimeout(cfg.Jobs.SubmitTimeout),
		jobs.WithJobTimeout(cfg.Jobs.JobTimeout),
		jobs.WithRecoveryPolicy(cfg.Jobs.RecoveryPolicy),
	)
	if err := queue.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job queue: %v", err)
	}
	defer queue.Stop()

	manager := jobs.NewManager(store, queue)

	cronRunner := cron.New()
	sweeper := service.NewUploadSweeper(cfg.Server.UploadsDir(), cfg.Cleanup.UploadTTL)
	if _, err := sweeper.Schedule(cronRunner, cfg.Cleanup.CronExpr); err != nil {
		log.Fatal("Failed to schedule upload sweep: %v", err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := httpapi.NewServer(manager, cfg.Server.UploadsDir())

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("HTTP server stopped: %v", err)
	case sig := <-sigCh:
		log.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed: %v", err)
	}
}
