package testutil

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/graphstore/kvstore"
	"github.com/hupe1980/graphstore/kvstore/boltstore"
	"github.com/hupe1980/graphstore/kvstore/memstore"
	"github.com/hupe1980/graphstore/kvstore/pebblestore"
)

// Backend is one store implementation opened for a test.
type Backend struct {
	Name  string
	Store kvstore.Store
}

// Backends opens every store implementation against the test's temporary
// directory. The stores are closed when the test ends.
func Backends(t *testing.T) []Backend {
	t.Helper()

	mem := memstore.New()
	t.Cleanup(func() { _ = mem.Close() })

	bolt, err := boltstore.Open(filepath.Join(t.TempDir(), "bolt.db"))
	if err != nil {
		t.Fatalf("open boltstore: %v", err)
	}
	t.Cleanup(func() { _ = bolt.Close() })

	pebble, err := pebblestore.Open(filepath.Join(t.TempDir(), "pebble"))
	if err != nil {
		t.Fatalf("open pebblestore: %v", err)
	}
	t.Cleanup(func() { _ = pebble.Close() })

	return []Backend{
		{Name: "memstore", Store: mem},
		{Name: "boltstore", Store: bolt},
		{Name: "pebblestore", Store: pebble},
	}
}
