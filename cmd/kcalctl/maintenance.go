package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"kcal/internal/backend"
	"kcal/internal/core"
	"kcal/internal/ledger"
	"kcal/internal/storage"
)

type migrateReport struct {
	Backend       string   `json:"backend"`
	SchemaVersion uint     `json:"schema_version,omitempty"`
	Dirty         bool     `json:"dirty,omitempty"`
	Days          int      `json:"days"`
	Migrated      []string `json:"migrated"`
	AssignedIDs   int      `json:"assigned_ids"`
	Skipped       []string `json:"skipped"`
}

// migrateCmd reports what opening the store normalized. Opening applies
// pending schema migrations and rewrites legacy day shapes once.
func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and upgrade legacy ledger documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := a.res.Report
			out := migrateReport{
				Backend:     a.cfg.DataBackend,
				Days:        r.Days,
				Migrated:    nonNil(r.Migrated),
				AssignedIDs: r.AssignedIDs,
				Skipped:     nonNil(r.Skipped),
			}
			if a.cfg.DataBackend == backend.SQLiteBackend.String() {
				v, dirty, err := storage.SchemaVersion(a.cfg.SQLiteDBPath)
				if err != nil {
					return err
				}
				out.SchemaVersion, out.Dirty = v, dirty
			}
			return a.emit(out, func(w io.Writer) {
				if out.SchemaVersion > 0 {
					fmt.Fprintf(w, "Schema version %d (dirty: %v)\n", out.SchemaVersion, out.Dirty)
				}
				fmt.Fprintf(w, "%d days in ledger\n", out.Days)
				if !r.Changed() {
					fmt.Fprintln(w, "Ledger already up to date")
					return
				}
				fmt.Fprintf(w, "Rewrote %d legacy days, assigned %d entry ids\n", len(out.Migrated), out.AssignedIDs)
				for _, k := range out.Migrated {
					fmt.Fprintf(w, "  migrated %s\n", k)
				}
				for _, k := range out.Skipped {
					fmt.Fprintf(w, "  skipped %s (unreadable)\n", k)
				}
			})
		},
	}
}

type importReport struct {
	File     string   `json:"file"`
	Days     int      `json:"days"`
	Added    int      `json:"added"`
	Migrated []string `json:"migrated"`
	Skipped  []string `json:"skipped"`
}

// importCmd merges an exported foodHistory document. Entries already
// present on a day are skipped, so importing twice adds nothing.
func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a foodHistory JSON export into the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			other, report, err := ledger.Decode(ctx, body)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			added, err := a.res.Ledger.Import(ctx, other)
			if err != nil {
				return err
			}
			if added > 0 {
				a.announce(cmd, other)
			}

			out := importReport{
				File:     args[0],
				Days:     len(other),
				Added:    added,
				Migrated: nonNil(report.Migrated),
				Skipped:  nonNil(report.Skipped),
			}
			return a.emit(out, func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d entries from %d days in %s\n", out.Added, out.Days, out.File)
				if len(out.Migrated) > 0 {
					fmt.Fprintf(w, "Upgraded %d legacy days\n", len(out.Migrated))
				}
				for _, k := range out.Skipped {
					fmt.Fprintf(w, "  skipped %s (unreadable)\n", k)
				}
			})
		},
	}
}

// announce publishes a day-sync message for every imported day. Publishing
// is best effort, as in the journal.
func (a *app) announce(cmd *cobra.Command, l core.Ledger) {
	if a.res.Publisher == nil {
		return
	}
	keys := make([]core.DateKey, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	version := time.Now().UnixNano()
	for i, k := range keys {
		if err := a.res.Publisher.PublishDaySync(cmd.Context(), k, version+int64(i)); err != nil {
			a.logger.Warn("Failed to publish day sync message", "date", k, "error", err)
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
