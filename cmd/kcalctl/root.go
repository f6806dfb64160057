package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"kcal/internal/backend"
	"kcal/internal/cli"
	"kcal/internal/config"
	"kcal/internal/core"
	"kcal/internal/estimate"
	applog "kcal/internal/log"
	"kcal/internal/services"
)

// dialogSlot is the single dialog the CLI logs through.
const dialogSlot = "cli"

// app holds what every subcommand shares. Resources are opened lazily by
// the root command's pre-run and released by run.
type app struct {
	out     io.Writer
	errOut  io.Writer
	jsonOut bool

	cfg     *config.Config
	logger  *applog.Logger
	res     *backend.BackendResult
	journal *services.Journal
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kcalctl",
		Short: "Inspect and edit the calorie journal",
		Long: `kcalctl works on the same document store as the kcal server, selected
with DATA_BACKEND, SQLITE_DB_PATH and DATA_DIR. Changes are announced to
the sync worker when AMQP_URL is set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		a.dayCmd(),
		a.addCmd(),
		a.rmCmd(),
		a.goalsCmd(),
		a.calendarCmd(),
		a.productsCmd(),
		a.migrateCmd(),
		a.importCmd(),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	cli.LoadEnvFile()
	a.cfg = config.Load()
	a.logger = cli.SetupLogger(a.cfg, applog.ComponentCLI, a.errOut)
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	cal, err := cli.Calendar(a.cfg)
	if err != nil {
		return err
	}

	a.res, err = cli.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", a.cfg.DataBackend, err)
	}

	// Estimation collaborators are not wired here; only manual and saved
	// product entries are logged from the command line.
	a.journal = services.NewJournal(services.JournalConfig{
		Ledger:    a.res.Ledger,
		Goals:     a.res.Goals,
		Catalog:   a.res.Catalog,
		Estimator: estimate.NewPipeline(estimate.PipelineConfig{Logger: a.logger.Slog()}),
		Publisher: a.res.Publisher,
		Calendar:  cal,
		Logger:    a.logger.WithComponent(applog.ComponentJournal).Slog(),
	})
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.res != nil && a.res.Cleanup != nil {
		errs = append(errs, a.res.Cleanup())
	}
	return errors.Join(errs...)
}

// dateArg returns args[i] as a DateKey, or today when it is absent.
func (a *app) dateArg(args []string, i int) (core.DateKey, error) {
	if len(args) <= i {
		return a.journal.Today(), nil
	}
	return core.ParseDateKey(args[i])
}

// emit prints v as JSON when --json is set, otherwise runs text.
func (a *app) emit(v any, text func(w io.Writer)) error {
	if a.jsonOut {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(a.out)
	return nil
}
