// Package sqlstore persists URL state snapshots in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	scenes "github.com/goliatone/go-scenes"
	"github.com/goliatone/go-scenes/pkg/urlsync"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens the sqlite database at path.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return db, nil
}

// Migrate applies the embedded schema migrations to db.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlstore: migrations source: %w", err)
	}
	// m.Close would close db as well; only the source is released here.
	defer src.Close()

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlstore: migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: migrate up: %w", err)
	}
	return nil
}

// Store implements urlsync.Store on a url_states table.
type Store struct {
	db *sql.DB
}

var _ urlsync.Store = (*Store)(nil)

// New returns a Store using db. Run Migrate first.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load implements urlsync.Store.
func (s *Store) Load(ctx context.Context, ref urlsync.Ref) (scenes.URLState, urlsync.Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, urlsync.Meta{}, false, err
	}

	var (
		rawState string
		rawExtra sql.NullString
		meta     urlsync.Meta
	)
	err = s.db.QueryRowContext(ctx, `
	SELECT state, snapshot_id, etag, extra, updated_at
	FROM url_states WHERE identifier = ?`, key).
		Scan(&rawState, &meta.SnapshotID, &meta.ETag, &rawExtra, &meta.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, urlsync.Meta{}, false, nil
	}
	if err != nil {
		return nil, urlsync.Meta{}, false, fmt.Errorf("sqlstore: load %s: %w", key, err)
	}

	var state scenes.URLState
	if err := json.Unmarshal([]byte(rawState), &state); err != nil {
		return nil, urlsync.Meta{}, false, fmt.Errorf("sqlstore: decode state %s: %w", key, err)
	}
	if rawExtra.Valid && rawExtra.String != "" {
		if err := json.Unmarshal([]byte(rawExtra.String), &meta.Extra); err != nil {
			return nil, urlsync.Meta{}, false, fmt.Errorf("sqlstore: decode extra %s: %w", key, err)
		}
	}
	meta.UpdatedAt = meta.UpdatedAt.UTC()
	return state, meta, true, nil
}

// Save implements urlsync.Store, replacing any stored state for ref.
func (s *Store) Save(ctx context.Context, ref urlsync.Ref, state scenes.URLState, meta urlsync.Meta) (urlsync.Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return urlsync.Meta{}, err
	}
	if state == nil {
		state = scenes.URLState{}
	}
	rawState, err := json.Marshal(state)
	if err != nil {
		return urlsync.Meta{}, fmt.Errorf("sqlstore: encode state %s: %w", key, err)
	}
	var rawExtra sql.NullString
	if meta.Extra != nil {
		encoded, err := json.Marshal(meta.Extra)
		if err != nil {
			return urlsync.Meta{}, fmt.Errorf("sqlstore: encode extra %s: %w", key, err)
		}
		rawExtra = sql.NullString{String: string(encoded), Valid: true}
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now()
	}
	meta.UpdatedAt = meta.UpdatedAt.UTC().Truncate(time.Second)

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO url_states(identifier, scene, scope, owner_id, state, snapshot_id, etag, extra, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(identifier) DO UPDATE SET
	 state=excluded.state,
	 snapshot_id=excluded.snapshot_id,
	 etag=excluded.etag,
	 extra=excluded.extra,
	 updated_at=excluded.updated_at;
	`, key, ref.Scene, ref.Scope, ref.ID, string(rawState), meta.SnapshotID, meta.ETag, rawExtra, meta.UpdatedAt)
	if err != nil {
		return urlsync.Meta{}, fmt.Errorf("sqlstore: save %s: %w", key, err)
	}
	return meta, nil
}

// Scenes lists the identifiers stored for scene, ordered by last update.
func (s *Store) Scenes(ctx context.Context, scene string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identifier FROM url_states WHERE scene = ? ORDER BY updated_at DESC, identifier`, scene)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
