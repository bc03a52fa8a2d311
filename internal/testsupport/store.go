package testsupport

import (
	"testing"

	"digistation/internal/catalogdb"
	"digistation/internal/config"
)

// MustOpenCatalog opens a catalogdb.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalogdb.Store {
	t.Helper()

	store, err := catalogdb.Open(cfg)
	if err != nil {
		t.Fatalf("catalogdb.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
