package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	scenes "github.com/goliatone/go-scenes"
	"github.com/goliatone/go-scenes/pkg/urlsync"
	"github.com/goliatone/go-scenes/pkg/urlsync/sqlstore"
)

func openStore(t *testing.T) (*sqlstore.Store, *sql.DB) {
	t.Helper()
	db, err := sqlstore.Open(filepath.Join(t.TempDir(), "scenes.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlstore.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.New(db), db
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	ref := urlsync.Ref{Scene: "overview", Scope: urlsync.ScopeUser, ID: "u-1"}

	if _, _, ok, err := store.Load(ctx, ref); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	state := scenes.URLState{"from": {"now-1h"}, "var-host": {"a", "b"}}
	meta := urlsync.Meta{SnapshotID: "s1", ETag: "e1", UpdatedAt: stamp, Extra: map[string]string{"source": "test"}}
	if _, err := store.Save(ctx, ref, state, meta); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, loadedMeta, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("expected stored state, got ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(loaded, state) {
		t.Fatalf("expected %v, got %v", state, loaded)
	}
	if loadedMeta.SnapshotID != "s1" || loadedMeta.ETag != "e1" || !loadedMeta.UpdatedAt.Equal(stamp) {
		t.Fatalf("unexpected meta %+v", loadedMeta)
	}
	if loadedMeta.Extra["source"] != "test" {
		t.Fatalf("expected extra restored, got %v", loadedMeta.Extra)
	}

	if _, err := store.Save(ctx, ref, scenes.URLState{"from": {"now-6h"}}, urlsync.Meta{SnapshotID: "s2"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, loadedMeta, _, _ = store.Load(ctx, ref)
	if loaded.First("from") != "now-6h" || loadedMeta.SnapshotID != "s2" || loadedMeta.Extra != nil {
		t.Fatalf("expected overwrite, got %v %+v", loaded, loadedMeta)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	_, db := openStore(t)
	if err := sqlstore.Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("expected db left open after migrate, got %v", err)
	}
}

func TestStoreRejectsInvalidRef(t *testing.T) {
	store, _ := openStore(t)
	if _, err := store.Save(context.Background(), urlsync.Ref{Scope: urlsync.ScopeSystem}, nil, urlsync.Meta{}); err == nil {
		t.Fatalf("expected error for missing scene")
	}
	if _, _, _, err := store.Load(context.Background(), urlsync.Ref{Scene: "x", Scope: urlsync.ScopeUser}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestStoreListsScenes(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	refs := []urlsync.Ref{
		{Scene: "overview", Scope: urlsync.ScopeSystem},
		{Scene: "overview", Scope: urlsync.ScopeTenant, ID: "t-1"},
		{Scene: "other", Scope: urlsync.ScopeSystem},
	}
	for i, ref := range refs {
		if _, err := store.Save(ctx, ref, scenes.URLState{}, urlsync.Meta{UpdatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	ids, err := store.Scenes(ctx, "overview")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"tenant/t-1/overview", "system/overview"}) {
		t.Fatalf("unexpected identifiers %v", ids)
	}
}

func TestSyncerWithSQLStore(t *testing.T) {
	store, _ := openStore(t)
	syncer := urlsync.Syncer{Store: store}
	ref := urlsync.Ref{Scene: "overview", Scope: urlsync.ScopeSystem}

	search := scenes.NewTextBoxVariable("search", "cpu")
	root := scenes.New("Dashboard", scenes.State{
		scenes.SlotVariables: scenes.NewSceneVariableSet([]scenes.Variable{search}),
	})
	_, meta, err := syncer.Save(context.Background(), ref, root, urlsync.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := syncer.Save(context.Background(), ref, root, urlsync.Meta{ETag: "stale"}); !errors.Is(err, urlsync.ErrETagMismatch) {
		t.Fatalf("expected etag mismatch, got %v", err)
	}

	restoredSearch := scenes.NewTextBoxVariable("search", "")
	restored := scenes.New("Dashboard", scenes.State{
		scenes.SlotVariables: scenes.NewSceneVariableSet([]scenes.Variable{restoredSearch}),
	})
	loadedMeta, ok, err := syncer.Restore(context.Background(), ref, restored)
	if err != nil || !ok {
		t.Fatalf("restore: ok=%v err=%v", ok, err)
	}
	if restoredSearch.Value() != "cpu" || loadedMeta.ETag != meta.ETag {
		t.Fatalf("expected restored value and etag, got %v %+v", restoredSearch.Value(), loadedMeta)
	}
}
