package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/ms05probe/internal/testutil"
)

var testStart = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// createTestStore creates a new store with predictable run ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDGenerator("run")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
