// Package testutil provides shared helpers for package tests.
package testutil

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/linkarr/linkarr/internal/store"
)

// NewTestStore opens a migrated store in a temp directory. The store is
// closed and the directory removed when the test finishes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(t.TempDir(), NewTestLogger(t))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// NewTestLogger creates a logger that writes to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
