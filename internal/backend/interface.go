// Package backend picks and opens the ports.Store named by DATA_BACKEND.
package backend

import (
	"context"

	"finledger/internal/ports"
)

// CleanupFunc releases what a backend holds open.
type CleanupFunc func() error

// Result contains the store and its cleanup function.
type Result struct {
	Store   ports.Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Type represents the type of backend
type Type string

const (
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
	MemoryBackend   Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
