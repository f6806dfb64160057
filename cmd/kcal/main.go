package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"kcal/internal/cli"
	"kcal/internal/config"
	"kcal/internal/estimate"
	"kcal/internal/estimate/groq"
	"kcal/internal/estimate/openfoodfacts"
	apphttp "kcal/internal/http"
	applog "kcal/internal/log"
	"kcal/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	cal, err := cli.Calendar(cfg)
	if err != nil {
		logger.Error("Invalid time zone", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	journal := services.NewJournal(services.JournalConfig{
		Ledger:     res.Ledger,
		Goals:      res.Goals,
		Catalog:    res.Catalog,
		Estimator:  newEstimator(cfg, logger),
		Publisher:  res.Publisher,
		Calendar:   cal,
		PreviewTTL: cfg.PreviewTTL,
		Logger:     logger.WithComponent(applog.ComponentJournal).Slog(),
	})
	defer journal.Close()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Journal:          journal,
		Ready:            res.Ping,
		Logger:           logger,
		RateLimitRPS:     cfg.RateLimitRPS,
		CalendarCacheTTL: cfg.CalendarCacheTTL,
		TrustedProxies:   cfg.TrustedProxies,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting kcal server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", cal.Location().String(),
			"days", res.Report.Days)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// newEstimator wires the model and food-database collaborators. Without a
// model API key only manual and saved-product entries are available.
func newEstimator(cfg *config.Config, logger *applog.Logger) *estimate.Pipeline {
	pc := estimate.PipelineConfig{
		Logger: logger.WithComponent(applog.ComponentEstimate).Slog(),
	}

	model, err := groq.New(groq.Config{
		APIKey:         cfg.GroqAPIKey,
		BaseURL:        cfg.GroqBaseURL,
		TextModel:      cfg.GroqTextModel,
		VisionModel:    cfg.GroqVisionModel,
		Timeout:        cfg.EstimationTimeout,
		RequestsPerSec: cfg.EstimationRPS,
	})
	switch {
	case err == nil:
		pc.Interpreter, pc.Nutrients, pc.Scanner = model, model, model
		logger.Info("Model collaborator enabled", "text_model", cfg.GroqTextModel, "vision_model", cfg.GroqVisionModel)
	case errors.Is(err, groq.ErrMissingAPIKey):
		logger.Warn("GROQ_API_KEY not set - text estimation and label scanning disabled")
	default:
		logger.Error("Failed to initialize model collaborator", applog.FieldError, err)
	}

	if cfg.OFFEnabled {
		pc.Finder = openfoodfacts.New(openfoodfacts.Config{
			BaseURL: cfg.OFFBaseURL,
			Timeout: cfg.EstimationTimeout,
		})
		logger.Info("OpenFoodFacts lookup enabled", "base_url", cfg.OFFBaseURL)
	}

	return estimate.NewPipeline(pc)
}
