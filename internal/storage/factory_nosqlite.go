//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(path string) (Store, error) {
	return nil, fmt.Errorf("cannot open %s: sqlite store not compiled in, build with -tags sqlite", path)
}

// DefaultStoreKind is the backend used when none is named.
func DefaultStoreKind() string { return "memory" }
