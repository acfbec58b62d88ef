package backend

import (
	"context"
	"path/filepath"
	"testing"

	"splitlens/internal/config"
	"splitlens/internal/core"
	"splitlens/internal/session"
)

func TestCreateMemory(t *testing.T) {
	res, err := Create(&config.Config{DataBackend: "memory"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer res.Cleanup()

	if res.Type != TypeMemory {
		t.Errorf("type = %q, want memory", res.Type)
	}
	if err := res.Store.Put(context.Background(), session.Session{ID: "s1", StoreMappings: core.StoreMapping{}}); err != nil {
		t.Errorf("Put on memory backend: %v", err)
	}
}

func TestCreateSQLite(t *testing.T) {
	cfg := &config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: filepath.Join(t.TempDir(), "backend.db"),
	}
	res, err := Create(cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer res.Cleanup()

	if res.Type != TypeSQLite {
		t.Errorf("type = %q, want sqlite", res.Type)
	}
	ctx := context.Background()
	if err := res.Store.Put(ctx, session.Session{ID: "s1", StoreMappings: core.StoreMapping{}}); err != nil {
		t.Fatalf("Put on sqlite backend: %v", err)
	}
	if _, err := res.Store.Get(ctx, "s1"); err != nil {
		t.Errorf("Get on sqlite backend: %v", err)
	}
}

func TestCreateUnknown(t *testing.T) {
	if _, err := Create(&config.Config{DataBackend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
