//go:build !sqlite

package storage

import "fmt"

// Builds without the sqlite tag do not link the modernc driver.
func newSQLiteStore(path string) (Store, error) {
	return nil, fmt.Errorf("%w: %s at %q needs a build with -tags sqlite", ErrBackendUnavailable, KindSQLite, path)
}
