// Package kv implements the repositories on top of a storage.Provider.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/signflow/internal/errs"
)

// Key prefixes inside the provider.
const (
	documentsPrefix = "documents/"
	usersPrefix     = "users/"
)

// storageErr classifies provider failures. Sentinels the callers act on and context
// errors pass through; anything else becomes errs.ErrStorage.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrConcurrentModification),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, errs.ErrStorage, err)
}
