package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"kcal/internal/amqp"
	"kcal/internal/core"
	"kcal/internal/ledger"
	"kcal/internal/metrics"
	"kcal/internal/sheets"
	"kcal/internal/storage"
)

const backfillConcurrency = 4

// SyncWorker mirrors daily totals from the ledger into the diary sheet.
// It never writes the ledger; every message reloads it from storage.
type SyncWorker struct {
	docs  storage.Documents
	diary sheets.Diary
	cal   core.Calendar
	days  int

	mu   sync.Mutex
	seen map[core.DateKey]int64
}

func NewSyncWorker(docs storage.Documents, diary sheets.Diary, cal core.Calendar, backfillDays int) *SyncWorker {
	if backfillDays <= 0 {
		backfillDays = 7
	}
	return &SyncWorker{
		docs:  docs,
		diary: diary,
		cal:   cal,
		days:  backfillDays,
		seen:  make(map[core.DateKey]int64),
	}
}

// HandleDaySync processes a single day sync message from AMQP.
func (w *SyncWorker) HandleDaySync(ctx context.Context, msg *amqp.DaySyncMessage) error {
	if w.stale(msg) {
		slog.InfoContext(ctx, "Skipping stale day sync message",
			"date", msg.Date, "version", msg.Version)
		metrics.SyncMessages.WithLabelValues("consume", "stale").Inc()
		return nil
	}

	l, _, err := ledger.Load(ctx, w.docs)
	if err != nil {
		metrics.SyncMessages.WithLabelValues("consume", "error").Inc()
		return fmt.Errorf("load ledger: %w", err)
	}

	if err := w.syncDay(ctx, l, msg.Date); err != nil {
		metrics.SyncMessages.WithLabelValues("consume", "error").Inc()
		return err
	}

	w.mu.Lock()
	w.seen[msg.Date] = msg.Version
	w.mu.Unlock()
	metrics.SyncMessages.WithLabelValues("consume", "ok").Inc()
	return nil
}

// stale reports whether a newer message for the same day was already applied.
func (w *SyncWorker) stale(msg *amqp.DaySyncMessage) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.seen[msg.Date]
	return ok && msg.Version <= last
}

func (w *SyncWorker) syncDay(ctx context.Context, l core.Ledger, key core.DateKey) error {
	row := sheets.RowFromSummary(ledger.Summarize(key, l.Day(key), core.DefaultGoals()))
	ref, err := w.diary.WriteDay(ctx, row)
	if err != nil {
		return fmt.Errorf("write day %s to diary: %w", key, err)
	}
	slog.InfoContext(ctx, "Synced day to diary",
		"date", key,
		"sheets_ref", ref,
		"kcal", row.Calories,
		"entries", row.Entries)
	return nil
}

// Backfill rewrites the diary rows of the last days whose totals differ
// from the ledger. It is the recovery path for lost messages and returns
// the number of rows written.
func (w *SyncWorker) Backfill(ctx context.Context) (int, error) {
	l, _, err := ledger.Load(ctx, w.docs)
	if err != nil {
		return 0, fmt.Errorf("load ledger: %w", err)
	}
	existing, err := w.diary.ListDays(ctx)
	if err != nil {
		return 0, fmt.Errorf("list diary days: %w", err)
	}
	current := make(map[core.DateKey]sheets.DiaryRow, len(existing))
	for _, r := range existing {
		current[r.Date] = r
	}

	today := w.cal.Today()
	var pending []core.DateKey
	for i := w.days - 1; i >= 0; i-- {
		key := today.AddDays(-i)
		want := sheets.RowFromSummary(ledger.Summarize(key, l.Day(key), core.DefaultGoals()))
		have, ok := current[key]
		if !ok && want.Entries == 0 {
			continue
		}
		if ok && have == want {
			continue
		}
		pending = append(pending, key)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "Diary is up to date", "days", w.days)
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)
	for _, key := range pending {
		g.Go(func() error {
			return w.syncDay(gctx, l, key)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Backfill completed", "days", w.days, "written", len(pending))
	return len(pending), nil
}
