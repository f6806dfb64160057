// Package ledger persists the food journal: the date-keyed ledger of
// categorized entries, the goals document and the saved-products catalog.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"kcal/internal/core"
	"kcal/internal/storage"
)

// LoadReport describes what normalization happened while loading.
type LoadReport struct {
	Days        int
	Migrated    []string // keys rewritten from the bare-array shape
	AssignedIDs int      // legacy entries that received a derived id
	Skipped     []string // days that could not be decoded
}

// Changed reports whether the loaded ledger differs from the stored bytes.
func (r LoadReport) Changed() bool {
	return len(r.Migrated) > 0 || r.AssignedIDs > 0 || len(r.Skipped) > 0
}

// Store is the in-process ledger. Every mutation rewrites the whole
// document before returning. Reads never write.
type Store struct {
	docs storage.Documents

	mu     sync.RWMutex
	ledger core.Ledger
}

// Open loads the ledger from docs, migrating legacy shapes first. When the
// migration or id assignment changed anything the result is persisted once.
func Open(ctx context.Context, docs storage.Documents) (*Store, LoadReport, error) {
	l, report, err := Load(ctx, docs)
	if err != nil {
		return nil, report, err
	}
	s := &Store{docs: docs, ledger: l}
	if report.Changed() {
		if err := saveDocument(ctx, docs, storage.KeyLedger, l); err != nil {
			return nil, report, fmt.Errorf("persist migrated ledger: %w", err)
		}
		slog.InfoContext(ctx, "Ledger normalized on load",
			"migrated_days", len(report.Migrated),
			"assigned_ids", report.AssignedIDs,
			"skipped_days", len(report.Skipped))
	}
	return s, report, nil
}

// Load reads a snapshot of the ledger without keeping a handle on it.
func Load(ctx context.Context, docs storage.Documents) (core.Ledger, LoadReport, error) {
	var raw map[string]json.RawMessage
	if _, err := loadDocument(ctx, docs, storage.KeyLedger, &raw); err != nil {
		return nil, LoadReport{}, err
	}
	return decodeLedger(ctx, docs, raw)
}

// Decode parses a ledger document, applying the same normalization as Load.
func Decode(ctx context.Context, body []byte) (core.Ledger, LoadReport, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, LoadReport{}, &core.PersistenceReadError{Key: storage.KeyLedger, Err: err}
	}
	return decodeLedger(ctx, nil, raw)
}

func decodeLedger(ctx context.Context, docs storage.Documents, raw map[string]json.RawMessage) (core.Ledger, LoadReport, error) {
	migrated, rewritten := Migrate(raw)
	report := LoadReport{Migrated: rewritten}

	l := make(core.Ledger, len(migrated))
	for k, v := range migrated {
		var day core.DayRecord
		if err := json.Unmarshal(v, &day); err != nil {
			if docs != nil {
				quarantine(ctx, docs, storage.KeyLedger+"/"+k, v, err)
			} else {
				slog.WarnContext(ctx, "Skipping unreadable day", "date_key", k, "error", err)
			}
			report.Skipped = append(report.Skipped, k)
			continue
		}
		key := core.DateKey(k)
		day = day.Clone()
		report.AssignedIDs += assignLegacyIDs(key, &day)
		l[key] = day
	}
	sort.Strings(report.Skipped)
	report.Days = len(l)
	return l, report, nil
}

// holdsSame reports whether entries has one equal to e apart from its id.
func holdsSame(entries []core.FoodEntry, e core.FoodEntry) bool {
	for _, x := range entries {
		x.ID = e.ID
		if x == e {
			return true
		}
	}
	return false
}

func assignLegacyIDs(key core.DateKey, day *core.DayRecord) int {
	n := 0
	for _, c := range core.Categories {
		entries := day.Entries(c)
		for i := range entries {
			if entries[i].ID == "" {
				entries[i].ID = core.LegacyEntryID(key, c, i)
				n++
			}
		}
	}
	return n
}

// Day returns the stored record for key or an empty one.
func (s *Store) Day(key core.DateKey) core.DayRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Day(key)
}

// Entries flattens a day as breakfast, lunch, dinner, other.
func (s *Store) Entries(key core.DateKey) []core.FoodEntry {
	return s.Day(key).All()
}

// PutDay replaces the record for key and persists the ledger. On failure the
// in-memory ledger is left unchanged.
func (s *Store) PutDay(ctx context.Context, key core.DateKey, rec core.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(ctx, key, rec)
}

func (s *Store) putLocked(ctx context.Context, key core.DateKey, rec core.DayRecord) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidDateKey, key)
	}
	next := make(core.Ledger, len(s.ledger)+1)
	for k, d := range s.ledger {
		next[k] = d
	}
	next[key] = rec.Clone()

	if err := saveDocument(ctx, s.docs, storage.KeyLedger, next); err != nil {
		return err
	}
	s.ledger = next
	return nil
}

// Update applies fn to a copy of the day and persists the result unless fn
// returns an error.
func (s *Store) Update(ctx context.Context, key core.DateKey, fn func(*core.DayRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := s.ledger.Day(key)
	if err := fn(&day); err != nil {
		return err
	}
	return s.putLocked(ctx, key, day)
}

// Append adds e to a category of the day, assigning an id when e has none.
func (s *Store) Append(ctx context.Context, key core.DateKey, c core.Category, e core.FoodEntry) (core.FoodEntry, error) {
	if e.ID == "" {
		e.ID = core.NewEntryID()
	}
	err := s.Update(ctx, key, func(d *core.DayRecord) error {
		return d.Add(c, e)
	})
	if err != nil {
		return core.FoodEntry{}, err
	}
	return e, nil
}

// RemoveByID deletes one entry of the day by id.
func (s *Store) RemoveByID(ctx context.Context, key core.DateKey, id core.EntryID) (core.FoodEntry, error) {
	var removed core.FoodEntry
	err := s.Update(ctx, key, func(d *core.DayRecord) error {
		_, e, err := d.RemoveByID(id)
		removed = e
		return err
	})
	return removed, err
}

// RemoveAt deletes the entry at a position within one category.
func (s *Store) RemoveAt(ctx context.Context, key core.DateKey, c core.Category, index int) (core.FoodEntry, error) {
	var removed core.FoodEntry
	err := s.Update(ctx, key, func(d *core.DayRecord) error {
		e, err := d.RemoveAt(c, index)
		removed = e
		return err
	})
	return removed, err
}

// Keys returns every stored day in calendar order.
func (s *Store) Keys() []core.DateKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]core.DateKey, 0, len(s.ledger))
	for k := range s.ledger {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Snapshot returns a deep copy of the whole ledger.
func (s *Store) Snapshot() core.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Clone()
}

// Import merges another ledger into the store. Entries whose id already
// exists on that day are skipped, so importing the same export twice adds
// nothing. A derived legacy id only identifies a position, so on such a
// collision the entry is skipped only when the category already holds the
// same food; otherwise it is added under a fresh id. It returns the number
// of entries added.
func (s *Store) Import(ctx context.Context, other core.Ledger) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.ledger.Clone()
	added := 0
	for key, in := range other {
		if !key.Valid() {
			continue
		}
		day := next.Day(key)
		for _, c := range core.Categories {
			for _, e := range in.Entries(c) {
				if _, _, exists := day.Find(e.ID); exists {
					if !e.ID.Derived() || holdsSame(day.Entries(c), e) {
						continue
					}
					e.ID = core.NewEntryID()
				}
				if err := day.Add(c, e); err != nil {
					return 0, err
				}
				added++
			}
		}
		next[key] = day
	}
	if added == 0 {
		return 0, nil
	}
	if err := saveDocument(ctx, s.docs, storage.KeyLedger, next); err != nil {
		return 0, err
	}
	s.ledger = next
	return added, nil
}
