package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kcal/internal/core"
	"kcal/internal/sheets"
)

var _ sheets.Diary = (*Store)(nil)

// Store is an in-process diary used when no spreadsheet is configured.
type Store struct {
	mu     sync.Mutex
	rows   map[core.DateKey]sheets.DiaryRow
	writes int
}

func New() *Store {
	return &Store{rows: make(map[core.DateKey]sheets.DiaryRow)}
}

// WriteDay replaces the row for the day and returns a synthetic reference.
func (s *Store) WriteDay(_ context.Context, row sheets.DiaryRow) (string, error) {
	if !row.Date.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidDateKey, row.Date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.Date] = row
	s.writes++
	return "mem:" + string(row.Date), nil
}

// ListDays returns rows in calendar order.
func (s *Store) ListDays(_ context.Context) ([]sheets.DiaryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.DiaryRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) Row(key core.DateKey) (sheets.DiaryRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[key]
	return r, ok
}

// Writes counts WriteDay calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
