package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"kcal/internal/core"
	"kcal/internal/storage"
)

// loadDocument decodes the document at key into v. A missing document
// reports found=false. An undecodable one is quarantined when the store
// supports it, logged as a PersistenceReadError and also reported as
// found=false so the caller starts from an empty value. Only store I/O
// failures are returned as errors.
func loadDocument(ctx context.Context, docs storage.Documents, key string, v any) (found bool, err error) {
	body, err := docs.Load(ctx, key)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		quarantine(ctx, docs, key, body, err)
		return false, nil
	}
	return true, nil
}

func quarantine(ctx context.Context, docs storage.Documents, key string, body []byte, cause error) {
	perr := &core.PersistenceReadError{Key: key, Err: cause}
	slog.WarnContext(ctx, "Treating unreadable document as empty", "key", key, "error", perr)
	if q, ok := docs.(storage.Quarantiner); ok {
		if err := q.Quarantine(ctx, key, body, cause.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to quarantine document", "key", key, "error", err)
		}
	}
}

func saveDocument(ctx context.Context, docs storage.Documents, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := docs.Save(ctx, key, body); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}
