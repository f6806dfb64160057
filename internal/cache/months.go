package cache

import (
	"fmt"
	"strings"
	"time"

	"kcal/internal/core"
)

// MonthViews caches calendar grids. A grid depends on today and the
// selected day, so both are part of the key; any write to a day drops
// every cached grid of that day's month.
type MonthViews struct {
	lru *LRUCache[core.MonthView]
}

func NewMonthViews(maxSize int, ttl time.Duration) *MonthViews {
	return &MonthViews{lru: NewLRUCache[core.MonthView](maxSize, ttl)}
}

func monthPrefix(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

func monthKey(year int, month time.Month, today, selected core.DateKey) string {
	return monthPrefix(year, month) + "|" + string(today) + "|" + string(selected)
}

// Get returns the cached grid or builds and stores it.
func (m *MonthViews) Get(year int, month time.Month, today, selected core.DateKey, build func() (core.MonthView, error)) (core.MonthView, error) {
	key := monthKey(year, month, today, selected)
	if v, ok := m.lru.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return core.MonthView{}, err
	}
	m.lru.Set(key, v)
	return v, nil
}

// Invalidate drops the grids of the month containing key.
func (m *MonthViews) Invalidate(key core.DateKey) int {
	y, mo, _ := key.Date()
	prefix := monthPrefix(y, mo) + "|"
	return m.lru.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

func (m *MonthViews) CleanExpired() int { return m.lru.CleanExpired() }

func (m *MonthViews) Size() int { return m.lru.Size() }
