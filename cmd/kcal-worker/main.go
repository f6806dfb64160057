package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"kcal/internal/amqp"
	"kcal/internal/backend"
	"kcal/internal/cli"
	"kcal/internal/config"
	applog "kcal/internal/log"
	"kcal/internal/sheets"
	gsheet "kcal/internal/sheets/google"
	mem "kcal/internal/sheets/memory"
	"kcal/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting kcal-worker")

	cal, err := cli.Calendar(cfg)
	if err != nil {
		logger.Error("Invalid time zone", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	// The worker only reads documents; it never opens the ledger for writing.
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	docs, closeDocs, err := backend.OpenDocuments(bc, logger.WithComponent(applog.ComponentStorage).Slog())
	if err != nil {
		logger.Error("Failed to open document store", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if closeDocs != nil {
		defer closeDocs()
	}

	diary, err := newDiary(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(docs, diary, cal, cfg.BackfillDays)

	// On startup, re-export recent days that might have been missed
	logger.Info("Performing startup backfill...", "days", cfg.BackfillDays)
	if n, err := syncWorker.Backfill(ctx); err != nil {
		logger.Error("Startup backfill failed", applog.FieldError, err)
	} else {
		logger.Info("Startup backfill done", "written", n)
	}

	scheduler, err := worker.NewScheduler(ctx, syncWorker, cal, cfg.BackfillSchedule)
	if err != nil {
		logger.Error("Failed to schedule backfill", applog.FieldError, err)
		os.Exit(1)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("Scheduler shutdown failed", applog.FieldError, err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumeDaySync(gctx, syncWorker.HandleDaySync)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP_URL not set - running scheduled backfill only")
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}

// newDiary returns the Google diary when a spreadsheet is configured and an
// in-process one otherwise.
func newDiary(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.Diary, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using memory diary")
		return mem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		DiarySheet:      cfg.GoogleDiarySheet,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleDiarySheet)
	return client, nil
}
