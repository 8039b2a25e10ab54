package urlsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	scenes "github.com/goliatone/go-scenes"
	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("urlsync: etag mismatch")

// Scope names accepted by Ref.
const (
	ScopeSystem = "system"
	ScopeTenant = "tenant"
	ScopeUser   = "user"
)

// Ref identifies one persisted URL state of one scene.
type Ref struct {
	Scene string
	Scope string
	ID    string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one URL state for a single reference.
type Store interface {
	Load(ctx context.Context, ref Ref) (state scenes.URLState, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, state scenes.URLState, meta Meta) (Meta, error)
}

func (r Ref) Identifier() (string, error) {
	if r.Scene == "" {
		return "", fmt.Errorf("missing scene name")
	}
	switch r.Scope {
	case ScopeSystem:
		return fmt.Sprintf("system/%s", r.Scene), nil
	case ScopeTenant, ScopeUser:
		if r.ID == "" {
			return "", fmt.Errorf("missing id for scope %q", r.Scope)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope, r.ID, r.Scene), nil
	default:
		return "", fmt.Errorf("unsupported scope name %q", r.Scope)
	}
}

// Syncer moves URL state between a scene tree and a Store.
type Syncer struct {
	Store Store
	// Now stamps saved snapshots; time.Now when nil.
	Now func() time.Time
}

// Save collects the URL state under root and stores it. A non-empty
// meta.ETag must match the stored ETag. Every save gets a new snapshot id
// and ETag.
func (s Syncer) Save(ctx context.Context, ref Ref, root scenes.SceneObject, meta Meta) (scenes.URLState, Meta, error) {
	if s.Store == nil {
		return nil, Meta{}, fmt.Errorf("urlsync: store is required")
	}
	if root == nil {
		return nil, Meta{}, fmt.Errorf("urlsync: root is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, Meta{}, fmt.Errorf("urlsync: %w", err)
	}

	_, loadedMeta, ok, err := s.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("urlsync: load %q: %w", ref.Scene, err)
	}
	if !ok {
		loadedMeta = Meta{}
	}
	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	state := scenes.CollectURLState(root)
	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.SnapshotID = uuid.NewString()
	saveMeta.ETag = uuid.NewString()
	saveMeta.UpdatedAt = s.now()

	savedMeta, err := s.Store.Save(ctx, ref, state, saveMeta)
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("urlsync: save %q: %w", ref.Scene, err)
	}
	return state, savedMeta, nil
}

// Restore applies the stored URL state to root. It reports false when
// nothing is stored for ref.
func (s Syncer) Restore(ctx context.Context, ref Ref, root scenes.SceneObject) (Meta, bool, error) {
	if s.Store == nil {
		return Meta{}, false, fmt.Errorf("urlsync: store is required")
	}
	state, meta, ok, err := s.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, false, fmt.Errorf("urlsync: load %q: %w", ref.Scene, err)
	}
	if !ok {
		return Meta{}, false, nil
	}
	scenes.ApplyURLState(root, state)
	return meta, true, nil
}

func (s Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
