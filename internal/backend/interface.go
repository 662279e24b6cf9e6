package backend

import (
	"context"

	"kakeibo/internal/kv"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result is a ready key-value store plus what the caller needs to manage it.
type Result struct {
	Store   kv.Store
	Type    Type
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration.
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; optional browser storage dump to preload.
	SeedFile string
}

// Type names a storage backend.
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}
