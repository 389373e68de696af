// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"testing"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
)

// Open returns connections to a private in-memory SQLite database that is closed
// when the test finishes. The pool is capped at one connection so every query sees
// the same memory database.
func Open(tb testing.TB) *database.Connections {
	tb.Helper()

	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    "file::memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() {
		_ = conns.Close()
	})
	return conns
}
