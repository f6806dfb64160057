package storage

import (
	"context"
	"errors"
)

// Fixed document keys. Each key holds one whole JSON document.
const (
	KeyLedger        = "foodHistory"
	KeyGoals         = "goals"
	KeySavedProducts = "savedProducts"
)

var ErrDocumentNotFound = errors.New("document not found")

// Documents is a store of whole-document blobs addressed by fixed keys.
// Save replaces the stored body in full.
type Documents interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, body []byte) error
}

// Quarantiner keeps a copy of an undecodable body before it is overwritten.
type Quarantiner interface {
	Quarantine(ctx context.Context, key string, body []byte, reason string) error
}
