package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"splitlens/internal/amqp"
	"splitlens/internal/cli"
	"splitlens/internal/export/gsheet"
	applog "splitlens/internal/log"
	"splitlens/internal/services"
	"splitlens/internal/storage"
	"splitlens/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting splitlens-worker")

	// The worker shares the sqlite store with the server; it needs the
	// persisted job payloads, so the memory backend is not an option here.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Optional Google Sheets export of imported transactions.
	var exporter worker.TransactionExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionSvc := services.NewSessionService(repo, nil)
	importWorker := worker.NewImportWorker(sessionSvc, repo, exporter)

	go func() {
		handler := func(msg amqp.ImportJobMessage) error {
			return importWorker.HandleImportMessage(ctx, msg)
		}
		if err := amqpClient.ConsumeImportJobs(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()
	time.Sleep(time.Second) // let the in-flight delivery settle

	logger.Info("Worker stopped")
}
