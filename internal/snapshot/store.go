// Package snapshot persists named JSON documents. Every save replaces the
// whole document; there are no partial updates.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned by Load when the document was never saved.
var ErrNotFound = errors.New("snapshot: document not found")

// Store loads and saves whole documents by name.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Close() error
}

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

func validateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("snapshot: invalid document name %q", name)
	}
	return nil
}
