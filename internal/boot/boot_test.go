package boot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fpang/tripstory/internal/auth"
	"github.com/fpang/tripstory/internal/config"
	"github.com/fpang/tripstory/internal/journey"
	"github.com/fpang/tripstory/internal/store"
)

func TestBuild_Minimal(t *testing.T) {
	app, err := Build(context.Background(), config.Config{ImageBackend: config.BackendAuto, Owner: "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.Close()

	if app.CheckIn.Backend() != "mock" {
		t.Errorf("expected mock backend, got %s", app.CheckIn.Backend())
	}
	if app.Resolver != nil {
		t.Error("expected no resolver without an AMap key")
	}
	if _, ok := app.Store.(*store.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", app.Store)
	}
	deps := app.ServerDeps()
	if deps.Resolver != nil {
		t.Error("nil resolver must stay a nil interface")
	}
	if app.Machine.State() != journey.StateIdle {
		t.Errorf("expected Idle, got %s", app.Machine.State())
	}
}

func TestBuild_ArkRequiresKey(t *testing.T) {
	if _, err := Build(context.Background(), config.Config{ImageBackend: config.BackendArk}); err == nil {
		t.Error("expected error for ark backend without key")
	}
}

func TestBuild_RestoresSavedRoute(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tripstory.db")

	s, err := store.OpenSQLite(ctx, path, "default")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.PutRoute(ctx, journey.DefaultRoute("Guilin")); err != nil {
		t.Fatalf("PutRoute: %v", err)
	}
	s.Close()

	app, err := Build(ctx, config.Config{ImageBackend: config.BackendMock, SQLitePath: path, Owner: "default"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	snap := app.Machine.Snapshot()
	if snap.Route == nil || snap.Route.Start != "Guilin Center" {
		t.Errorf("expected restored route, got %+v", snap.Route)
	}
}

func TestValidateKey_NoKey(t *testing.T) {
	app := &App{}
	var valErr *auth.ValidationError
	if err := app.ValidateKey(context.Background()); !errors.As(err, &valErr) || valErr.Type != auth.ErrTypeNoKey {
		t.Errorf("expected no-key validation error, got %v", err)
	}
}
