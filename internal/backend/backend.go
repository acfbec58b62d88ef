// Package backend selects and constructs the session store backend.
package backend

import (
	"fmt"

	"splitlens/internal/config"
	"splitlens/internal/session"
	"splitlens/internal/session/memory"
	"splitlens/internal/storage"
)

type Type string

const (
	TypeMemory Type = "memory"
	TypeSQLite Type = "sqlite"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result contains the store instance and its cleanup function.
type Result struct {
	Type    Type
	Store   session.Store
	Cleanup CleanupFunc
}

// Create builds the session store named by cfg.DataBackend.
func Create(cfg *config.Config) (*Result, error) {
	switch Type(cfg.DataBackend) {
	case TypeSQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("sqlite backend: %w", err)
		}
		return &Result{
			Type:    TypeSQLite,
			Store:   repo,
			Cleanup: repo.Close,
		}, nil
	case TypeMemory:
		return &Result{
			Type:    TypeMemory,
			Store:   memory.New(),
			Cleanup: func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}
