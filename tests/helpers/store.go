// Package helpers provides shared test fixtures.
package helpers

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/wenqic/agentgate/store"
)

// NewTestSQLiteStore returns an in-memory store torn down with the test.
// Each store gets its own named shared-cache database so pooled
// connections see the same tables without leaking state across tests.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	s, err := store.NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
