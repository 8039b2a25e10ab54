package urlsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	scenes "github.com/goliatone/go-scenes"
	"github.com/goliatone/go-scenes/pkg/urlsync"
)

func buildScene(from, text string) (*scenes.Object, *scenes.SceneTimeRange, *scenes.TextBoxVariable) {
	tr := scenes.NewSceneTimeRange(scenes.State{"from": from, "to": "now"})
	search := scenes.NewTextBoxVariable("search", text)
	set := scenes.NewSceneVariableSet([]scenes.Variable{search})
	root := scenes.New("Scene", scenes.State{
		scenes.SlotTimeRange: tr,
		scenes.SlotVariables: set,
	})
	return root, tr, search
}

func TestSyncerSaveAndRestore(t *testing.T) {
	store := urlsync.NewMemoryStore()
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	syncer := urlsync.Syncer{Store: store, Now: func() time.Time { return stamp }}
	ref := urlsync.Ref{Scene: "overview", Scope: urlsync.ScopeSystem}

	source, _, _ := buildScene("now-24h", "errors")
	state, meta, err := syncer.Save(context.Background(), ref, source, urlsync.Meta{})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got := state.First("from"); got != "now-24h" {
		t.Fatalf("expected from now-24h, got %q", got)
	}
	if got := state.First("var-search"); got != "errors" {
		t.Fatalf("expected var-search errors, got %q", got)
	}
	if meta.SnapshotID == "" || meta.ETag == "" {
		t.Fatalf("expected snapshot id and etag, got %+v", meta)
	}
	if !meta.UpdatedAt.Equal(stamp) {
		t.Fatalf("expected updated at %v, got %v", stamp, meta.UpdatedAt)
	}

	target, tr, search := buildScene("now-6h", "")
	restoredMeta, ok, err := syncer.Restore(context.Background(), ref, target)
	if err != nil || !ok {
		t.Fatalf("expected restore, got ok=%v err=%v", ok, err)
	}
	if restoredMeta.ETag != meta.ETag {
		t.Fatalf("expected etag %q, got %q", meta.ETag, restoredMeta.ETag)
	}
	if got := tr.Value().Raw.From; got != "now-24h" {
		t.Fatalf("expected restored from now-24h, got %q", got)
	}
	if got := search.ValueText(); got != "errors" {
		t.Fatalf("expected restored search errors, got %q", got)
	}
}

func TestSyncerRestoreMissing(t *testing.T) {
	syncer := urlsync.Syncer{Store: urlsync.NewMemoryStore()}
	root, _, _ := buildScene("now-6h", "")
	_, ok, err := syncer.Restore(context.Background(), urlsync.Ref{Scene: "none", Scope: urlsync.ScopeSystem}, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected nothing restored")
	}
}

func TestSyncerETagMismatch(t *testing.T) {
	syncer := urlsync.Syncer{Store: urlsync.NewMemoryStore()}
	ref := urlsync.Ref{Scene: "overview", Scope: urlsync.ScopeTenant, ID: "acme"}
	root, _, _ := buildScene("now-6h", "a")

	if _, _, err := syncer.Save(context.Background(), ref, root, urlsync.Meta{}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	_, _, err := syncer.Save(context.Background(), ref, root, urlsync.Meta{ETag: "stale"})
	if !errors.Is(err, urlsync.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
}

func TestSyncerRequiresStore(t *testing.T) {
	root, _, _ := buildScene("now-6h", "")
	if _, _, err := (urlsync.Syncer{}).Save(context.Background(), urlsync.Ref{Scene: "x", Scope: urlsync.ScopeSystem}, root, urlsync.Meta{}); err == nil {
		t.Fatalf("expected missing store error")
	}
}
