package storage

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported store backend")
	// ErrBackendUnavailable is returned for a known backend that this binary
	// was built without.
	ErrBackendUnavailable = errors.New("store backend unavailable")
)

// NewStore opens the backend named by kind, matched case-insensitively. An
// empty kind selects the memory store.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, kind)
	}
}

// CloseIfSupported releases store resources when the backend holds any.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
