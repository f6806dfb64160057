package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"kcal/internal/core"
	"kcal/internal/storage"
)

var (
	ErrProductExists   = errors.New("product already saved")
	ErrProductNotFound = errors.New("product not found")
)

// Catalog is the saved-products document: per-100g profiles the user can
// log again by weight.
type Catalog struct {
	docs storage.Documents

	mu    sync.RWMutex
	items []core.Product
}

// OpenCatalog loads the catalog. Items stored without an id receive one
// derived from their position, persisted once.
func OpenCatalog(ctx context.Context, docs storage.Documents) (*Catalog, error) {
	var items []core.Product
	if _, err := loadDocument(ctx, docs, storage.KeySavedProducts, &items); err != nil {
		return nil, err
	}
	assigned := false
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = fmt.Sprintf("legacy-product-%d", i)
			assigned = true
		}
		if strings.TrimSpace(items[i].Per) == "" {
			items[i].Per = core.DefaultPer
		}
	}
	c := &Catalog{docs: docs, items: items}
	if assigned {
		if err := saveDocument(ctx, docs, storage.KeySavedProducts, items); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// List returns the products in insertion order.
func (c *Catalog) List() []core.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Product{}, c.items...)
}

func (c *Catalog) Get(id string) (core.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.items {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

// Add saves p unless a product with the same name is already present.
func (c *Catalog) Add(ctx context.Context, p core.Product) (core.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		p.Name = core.DefaultProductName
	}
	if strings.TrimSpace(p.Per) == "" {
		p.Per = core.DefaultPer
	}
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.items {
		if core.SameProductName(existing.Name, p.Name) {
			return core.Product{}, fmt.Errorf("%w: %s", ErrProductExists, p.Name)
		}
	}
	p.ID = uuid.NewString()
	next := append(append([]core.Product{}, c.items...), p)
	if err := saveDocument(ctx, c.docs, storage.KeySavedProducts, next); err != nil {
		return core.Product{}, err
	}
	c.items = next
	return p, nil
}

// Remove deletes the product with the given id.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.items {
		if p.ID == id {
			return c.removeLocked(ctx, i)
		}
	}
	return fmt.Errorf("%w: %s", ErrProductNotFound, id)
}

// RemoveAt deletes the product at a list position.
func (c *Catalog) RemoveAt(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.items) {
		return fmt.Errorf("%w: index %d", ErrProductNotFound, index)
	}
	return c.removeLocked(ctx, index)
}

func (c *Catalog) removeLocked(ctx context.Context, i int) error {
	next := make([]core.Product, 0, len(c.items)-1)
	next = append(next, c.items[:i]...)
	next = append(next, c.items[i+1:]...)
	if err := saveDocument(ctx, c.docs, storage.KeySavedProducts, next); err != nil {
		return err
	}
	c.items = next
	return nil
}
