package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"kcal/internal/core"
	"kcal/internal/estimate"
	"kcal/internal/ledger"
	"kcal/internal/metrics"
)

const (
	DefaultPreviewTTL     = 3 * time.Second
	DefaultScanPreviewTTL = 2500 * time.Millisecond
)

// ErrStaleDialog is returned when an estimation finished after the dialog
// that triggered it was dismissed. Nothing is appended in that case.
var ErrStaleDialog = errors.New("dialog dismissed before result arrived")

var ErrClosed = errors.New("journal closed")

// Estimator is the estimation surface the journal drives.
type Estimator interface {
	EstimateText(ctx context.Context, text string) (estimate.Estimate, error)
	ScanLabel(ctx context.Context, img estimate.Image) (estimate.LabelScan, error)
	FindFood(ctx context.Context, term string) (estimate.FoodMatch, error)
}

// Publisher announces that a day changed. Publishing is best effort.
type Publisher interface {
	PublishDaySync(ctx context.Context, key core.DateKey, version int64) error
}

type JournalConfig struct {
	Ledger    *ledger.Store
	Goals     *ledger.GoalsStore
	Catalog   *ledger.Catalog
	Estimator Estimator
	Publisher Publisher // optional
	Calendar  core.Calendar

	PreviewTTL     time.Duration
	ScanPreviewTTL time.Duration
	Logger         *slog.Logger
}

// Journal is the controller behind every surface. It owns the selected
// date, the open dialogs and the transient previews, and it is the single
// writer of the ledger within a process.
type Journal struct {
	ledger    *ledger.Store
	goals     *ledger.GoalsStore
	catalog   *ledger.Catalog
	estimator Estimator
	publisher Publisher
	cal       core.Calendar
	logger    *slog.Logger

	previewTTL     time.Duration
	scanPreviewTTL time.Duration
	afterFunc      func(time.Duration, func()) stopper

	inflight singleflight.Group
	version  atomic.Int64

	mu         sync.Mutex
	selected   core.DateKey
	generation uint64
	dialogs    map[string]*dialogSlot
	previews   map[string]*previewSlot
	listeners  []func(core.DateKey)
	closed     bool
}

// Logged is the outcome of one append.
type Logged struct {
	Date     core.DateKey            `json:"date"`
	Category core.Category           `json:"category"`
	Entry    core.FoodEntry          `json:"entry"`
	Items    []estimate.ResolvedItem `json:"items,omitempty"`
	Day      core.DaySummary         `json:"day"`
}

// DayView is everything a surface needs to render one day.
type DayView struct {
	Summary core.DaySummary `json:"summary"`
	Record  core.DayRecord  `json:"record"`
	Goals   core.Goals      `json:"goals"`
}

func NewJournal(cfg JournalConfig) *Journal {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewTTL <= 0 {
		cfg.PreviewTTL = DefaultPreviewTTL
	}
	if cfg.ScanPreviewTTL <= 0 {
		cfg.ScanPreviewTTL = DefaultScanPreviewTTL
	}
	j := &Journal{
		ledger:         cfg.Ledger,
		goals:          cfg.Goals,
		catalog:        cfg.Catalog,
		estimator:      cfg.Estimator,
		publisher:      cfg.Publisher,
		cal:            cfg.Calendar,
		logger:         logger,
		previewTTL:     cfg.PreviewTTL,
		scanPreviewTTL: cfg.ScanPreviewTTL,
		afterFunc:      realAfterFunc,
		dialogs:        make(map[string]*dialogSlot),
		previews:       make(map[string]*previewSlot),
	}
	j.selected = j.cal.Today()
	j.version.Store(time.Now().UnixNano())
	return j
}

// OnChange registers fn to run after any mutation of a day.
func (j *Journal) OnChange(fn func(core.DateKey)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.listeners = append(j.listeners, fn)
}

func (j *Journal) Calendar() core.Calendar { return j.cal }

// Today returns the key of the current local day.
func (j *Journal) Today() core.DateKey { return j.cal.Today() }

// Selected returns the date currently being viewed.
func (j *Journal) Selected() core.DateKey {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.selected
}

func (j *Journal) SelectDate(key core.DateKey) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidDateKey, key)
	}
	j.mu.Lock()
	j.selected = key
	j.mu.Unlock()
	return nil
}

// ShiftDate moves the selection by n calendar days.
func (j *Journal) ShiftDate(n int) core.DateKey {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.selected = j.selected.AddDays(n)
	return j.selected
}

func (j *Journal) Day(key core.DateKey) (DayView, error) {
	if !key.Valid() {
		return DayView{}, fmt.Errorf("%w: %q", core.ErrInvalidDateKey, key)
	}
	goals := j.goals.Get()
	rec := j.ledger.Day(key)
	return DayView{
		Summary: ledger.Summarize(key, rec, goals),
		Record:  rec,
		Goals:   goals,
	}, nil
}

// Month builds the calendar grid, marking the selected date.
func (j *Journal) Month(year int, month time.Month) (core.MonthView, error) {
	if month < time.January || month > time.December {
		return core.MonthView{}, &core.ValidationError{Field: "month", Reason: "must be 1-12"}
	}
	return ledger.Month(j.ledger, j.cal, year, month, j.Selected()), nil
}

func (j *Journal) Goals() core.Goals { return j.goals.Get() }

// UpdateGoals applies form input, keeping the prior value of any field
// that does not parse to a positive number.
func (j *Journal) UpdateGoals(ctx context.Context, in core.GoalsInput) (core.Goals, error) {
	return j.goals.Apply(ctx, in)
}

// LogText estimates free text and appends the composite entry. Identical
// submissions that overlap share one estimation and one append; trigger
// names the submission when the caller has its own idempotency key.
func (j *Journal) LogText(ctx context.Context, d Dialog, text, trigger string) (Logged, error) {
	if err := j.checkOpen(); err != nil {
		return Logged{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Logged{}, &core.ValidationError{Field: "text", Reason: "required"}
	}
	if trigger == "" {
		trigger = triggerKey(d, text)
	}

	// Estimation runs to completion even if the caller goes away.
	detached := context.WithoutCancel(ctx)
	v, err, shared := j.inflight.Do(trigger, func() (any, error) {
		est, err := j.estimator.EstimateText(detached, text)
		if err != nil {
			return Logged{}, err
		}
		logged, err := j.append(detached, d, est.Entry, "text")
		if err != nil {
			return Logged{}, err
		}
		logged.Items = est.Items
		j.showPreview(d, logged, j.previewTTL)
		return logged, nil
	})
	if shared {
		metrics.SharedResults.Inc()
	}
	if err != nil {
		return Logged{}, err
	}
	return v.(Logged), nil
}

// ScanLabel reads a nutrition label. The result is only returned while
// the dialog that asked for it is still open.
func (j *Journal) ScanLabel(ctx context.Context, d Dialog, img estimate.Image) (estimate.LabelScan, error) {
	if err := j.checkOpen(); err != nil {
		return estimate.LabelScan{}, err
	}
	scan, err := j.estimator.ScanLabel(context.WithoutCancel(ctx), img)
	if err != nil {
		return estimate.LabelScan{}, err
	}
	if !j.DialogValid(d) {
		metrics.StaleResults.Inc()
		return estimate.LabelScan{}, ErrStaleDialog
	}
	return scan, nil
}

// LogScan appends grams of a scanned product.
func (j *Journal) LogScan(ctx context.Context, d Dialog, scan estimate.LabelScan, grams float64) (Logged, error) {
	if err := j.checkOpen(); err != nil {
		return Logged{}, err
	}
	if err := scan.Validate(); err != nil {
		return Logged{}, err
	}
	if !scan.PerHundred() {
		j.logger.WarnContext(ctx, "Label values not per 100 g, scaling as if they were", "per", scan.Per)
	}
	entry, err := estimate.FromLabel(scan, grams)
	if err != nil {
		return Logged{}, err
	}
	logged, err := j.append(ctx, d, entry, "label")
	if err != nil {
		return Logged{}, err
	}
	j.showPreview(d, logged, j.scanPreviewTTL)
	return logged, nil
}

// SaveScan stores a scanned label in the catalog.
func (j *Journal) SaveScan(ctx context.Context, scan estimate.LabelScan) (core.Product, error) {
	if err := scan.Validate(); err != nil {
		return core.Product{}, err
	}
	return j.catalog.Add(ctx, scan.AsProduct())
}

// LogSavedProduct appends grams of a catalog product.
func (j *Journal) LogSavedProduct(ctx context.Context, d Dialog, productID string, grams float64) (Logged, error) {
	if err := j.checkOpen(); err != nil {
		return Logged{}, err
	}
	p, err := j.catalog.Get(productID)
	if err != nil {
		return Logged{}, err
	}
	entry, err := estimate.FromProduct(p, grams)
	if err != nil {
		return Logged{}, err
	}
	logged, err := j.append(ctx, d, entry, "saved")
	if err != nil {
		return Logged{}, err
	}
	j.showPreview(d, logged, j.scanPreviewTTL)
	return logged, nil
}

// LogManual appends values typed in by the user.
func (j *Journal) LogManual(ctx context.Context, d Dialog, in estimate.ManualInput) (Logged, error) {
	if err := j.checkOpen(); err != nil {
		return Logged{}, err
	}
	entry, err := estimate.FromManual(in)
	if err != nil {
		return Logged{}, err
	}
	return j.append(ctx, d, entry, "manual")
}

func (j *Journal) DeleteEntry(ctx context.Context, key core.DateKey, id core.EntryID) (core.FoodEntry, error) {
	if err := j.checkOpen(); err != nil {
		return core.FoodEntry{}, err
	}
	removed, err := j.ledger.RemoveByID(ctx, key, id)
	if err != nil {
		return core.FoodEntry{}, err
	}
	j.afterMutation(ctx, key)
	metrics.EntriesDeleted.Inc()
	return removed, nil
}

// DeleteAt removes by position, the way the original list-based UI did.
func (j *Journal) DeleteAt(ctx context.Context, key core.DateKey, c core.Category, index int) (core.FoodEntry, error) {
	if err := j.checkOpen(); err != nil {
		return core.FoodEntry{}, err
	}
	removed, err := j.ledger.RemoveAt(ctx, key, c, index)
	if err != nil {
		return core.FoodEntry{}, err
	}
	j.afterMutation(ctx, key)
	metrics.EntriesDeleted.Inc()
	return removed, nil
}

func (j *Journal) Products() []core.Product { return j.catalog.List() }

func (j *Journal) AddProduct(ctx context.Context, p core.Product) (core.Product, error) {
	return j.catalog.Add(ctx, p)
}

func (j *Journal) RemoveProduct(ctx context.Context, id string) error {
	return j.catalog.Remove(ctx, id)
}

// FindFood searches the structured food database.
func (j *Journal) FindFood(ctx context.Context, term string) (estimate.FoodMatch, error) {
	if strings.TrimSpace(term) == "" {
		return estimate.FoodMatch{}, &core.ValidationError{Field: "q", Reason: "required"}
	}
	return j.estimator.FindFood(ctx, term)
}

// Close stops preview timers and rejects further mutations.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	for slot, p := range j.previews {
		p.timer.Stop()
		delete(j.previews, slot)
	}
	return nil
}

func (j *Journal) checkOpen() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return nil
}

// append writes entry for d. The dialog check and the ledger write happen
// under one lock hold, so a dismiss either lands first and the entry is
// dropped, or lands after the entry is stored.
func (j *Journal) append(ctx context.Context, d Dialog, entry core.FoodEntry, source string) (Logged, error) {
	if !d.Date.Valid() {
		return Logged{}, fmt.Errorf("%w: %q", core.ErrInvalidDateKey, d.Date)
	}
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return Logged{}, ErrClosed
	}
	if !j.validLocked(d) {
		j.mu.Unlock()
		metrics.StaleResults.Inc()
		j.logger.InfoContext(ctx, "Discarding entry for dismissed dialog",
			"dialog", d.Slot, "date", d.Date, "source", source)
		return Logged{}, ErrStaleDialog
	}
	saved, err := j.ledger.Append(ctx, d.Date, d.Category, entry)
	j.mu.Unlock()
	if err != nil {
		return Logged{}, fmt.Errorf("append entry: %w", err)
	}
	metrics.EntriesLogged.WithLabelValues(source).Inc()
	j.logger.InfoContext(ctx, "Entry logged",
		"date", d.Date, "category", d.Category, "source", source,
		"label", saved.Label, "kcal", saved.Calories)

	j.afterMutation(ctx, d.Date)
	return Logged{
		Date:     d.Date,
		Category: d.Category,
		Entry:    saved,
		Day:      ledger.Summary(j.ledger, d.Date, j.goals.Get()),
	}, nil
}

func (j *Journal) afterMutation(ctx context.Context, key core.DateKey) {
	j.mu.Lock()
	listeners := append([]func(core.DateKey){}, j.listeners...)
	j.mu.Unlock()
	for _, fn := range listeners {
		fn(key)
	}

	if j.publisher == nil {
		return
	}
	version := j.version.Add(1)
	if err := j.publisher.PublishDaySync(ctx, key, version); err != nil {
		metrics.SyncMessages.WithLabelValues("publish", "error").Inc()
		// The ledger write already succeeded.
		j.logger.ErrorContext(ctx, "Failed to publish day sync message",
			"date", key, "version", version, "error", err)
		return
	}
	metrics.SyncMessages.WithLabelValues("publish", "ok").Inc()
}

func triggerKey(d Dialog, text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return d.Slot + "|" + string(d.Date) + "|" + string(d.Category) + "|" + norm
}
