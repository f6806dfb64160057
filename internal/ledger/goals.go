package ledger

import (
	"context"
	"fmt"
	"sync"

	"kcal/internal/core"
	"kcal/internal/storage"
)

// GoalsStore holds the goals document.
type GoalsStore struct {
	docs storage.Documents

	mu    sync.RWMutex
	goals core.Goals
}

// OpenGoals loads goals, falling back to defaults for a missing or
// unreadable document and for any non-positive field.
func OpenGoals(ctx context.Context, docs storage.Documents) (*GoalsStore, error) {
	g := core.DefaultGoals()
	var stored core.Goals
	found, err := loadDocument(ctx, docs, storage.KeyGoals, &stored)
	if err != nil {
		return nil, err
	}
	if found {
		g = stored.Normalize()
	}
	return &GoalsStore{docs: docs, goals: g}, nil
}

func (s *GoalsStore) Get() core.Goals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.goals
}

// Set replaces the goals after validation.
func (s *GoalsStore) Set(ctx context.Context, g core.Goals) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("set goals: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := saveDocument(ctx, s.docs, storage.KeyGoals, g); err != nil {
		return err
	}
	s.goals = g
	return nil
}

// Apply parses raw input against the current goals and persists the result.
// Fields that fail to parse keep their current value.
func (s *GoalsStore) Apply(ctx context.Context, in core.GoalsInput) (core.Goals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.goals.Apply(in)
	if err := saveDocument(ctx, s.docs, storage.KeyGoals, next); err != nil {
		return s.goals, err
	}
	s.goals = next
	return next, nil
}
