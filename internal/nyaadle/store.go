package nyaadle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Setting keys stored in the directories table.
const (
	KeyDownloadDir = "dl-dir"
	KeyArchiveDir  = "ar-dir"
	KeyFeedURL     = "url"
	KeyLogPath     = "log"
)

// SettingKeys lists every flat setting in display order.
var SettingKeys = []string{KeyDownloadDir, KeyArchiveDir, KeyFeedURL, KeyLogPath}

const opTimeout = 5 * time.Second

var schema = []string{
	`create table if not exists directories (
		option text primary key,
		path text not null)`,
	`create table if not exists watchlist (
		id integer primary key,
		name text not null unique,
		option text not null)`,
	`create table if not exists tracking (
		name text primary key,
		latest text not null)`,
}

// SettingsProvider reads flat settings. Unset keys read as "".
type SettingsProvider interface {
	Setting(ctx context.Context, key string) (string, error)
}

// TrackingStore persists the latest processed item per watch-list key.
type TrackingStore interface {
	Tracking(ctx context.Context, key string) (string, error)
	UpsertTracking(ctx context.Context, key, value string) error
}

// Store is the persisted configuration, watch-list and tracking state.
type Store struct {
	db *sql.DB
}

// DefaultStorePath returns <UserConfigDir>/nyaadle/nyaadle.db.
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, "nyaadle", "nyaadle.db"), nil
}

// OpenStore opens (creating if needed) the database at path and ensures the
// schema exists.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// One writer at a time; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureDefaults writes the default settings and the placeholder watch-list
// entry on first run. It reports whether anything was written.
func (s *Store) EnsureDefaults(ctx context.Context) (bool, error) {
	defaults, err := DefaultSettings()
	if err != nil {
		return false, err
	}
	wrote := false
	for _, key := range SettingKeys {
		v, err := s.Setting(ctx, key)
		if err != nil {
			return wrote, err
		}
		if v != "" {
			continue
		}
		if err := s.SetSetting(ctx, key, defaults[key]); err != nil {
			return wrote, err
		}
		wrote = true
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var n int
	if err := s.db.QueryRowContext(ctx, "select count(*) from watchlist").Scan(&n); err != nil {
		return wrote, fmt.Errorf("count watchlist: %w", err)
	}
	if n == 0 {
		if _, err := s.db.ExecContext(ctx,
			"insert into watchlist (name, option) values (?, ?)", "", OptionNonVideo); err != nil {
			return wrote, fmt.Errorf("seed watchlist: %w", err)
		}
		wrote = true
	}
	return wrote, nil
}

// Setting returns the value stored for key, or "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var v string
	err := s.db.QueryRowContext(ctx, "select path from directories where option = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return v, nil
}

// SetSetting updates key if present and inserts it otherwise.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, "update directories set path = ? where option = ?", value, key)
	if err != nil {
		return fmt.Errorf("update setting %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "insert into directories (option, path) values (?, ?)", key, value); err != nil {
		return fmt.Errorf("insert setting %q: %w", key, err)
	}
	return nil
}

// WatchList returns every watch-list entry ordered by id.
func (s *Store) WatchList(ctx context.Context) ([]WatchEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "select id, name, option from watchlist order by id")
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []WatchEntry
	for rows.Next() {
		var e WatchEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Option); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// AddWatchEntry inserts a new entry and returns its id.
func (s *Store) AddWatchEntry(ctx context.Context, title, option string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, "insert into watchlist (name, option) values (?, ?)", title, option)
	if err != nil {
		return 0, fmt.Errorf("add %q: %w", title, err)
	}
	return res.LastInsertId()
}

// UpdateWatchEntry replaces the title and option of entry id.
func (s *Store) UpdateWatchEntry(ctx context.Context, id int64, title, option string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, "update watchlist set name = ?, option = ? where id = ?", title, option, id)
	if err != nil {
		return fmt.Errorf("update %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %d: no such item", id)
	}
	return nil
}

// DeleteWatchEntry removes entry id.
func (s *Store) DeleteWatchEntry(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, "delete from watchlist where id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %d: no such item", id)
	}
	return nil
}

// Tracking returns the latest item recorded for key, or "".
func (s *Store) Tracking(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var v string
	err := s.db.QueryRowContext(ctx, "select latest from tracking where name = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get tracking %q: %w", key, err)
	}
	return v, nil
}

// UpsertTracking records value as the latest item for key. It looks the
// row up first and then updates or inserts, so it is only safe with a
// single writer.
func (s *Store) UpsertTracking(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, "select count(*) from tracking where name = ?", key).Scan(&n); err != nil {
		return fmt.Errorf("lookup tracking %q: %w", key, err)
	}
	if n > 0 {
		if _, err := s.db.ExecContext(ctx, "update tracking set latest = ? where name = ?", value, key); err != nil {
			return fmt.Errorf("update tracking %q: %w", key, err)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "insert into tracking (name, latest) values (?, ?)", key, value); err != nil {
		return fmt.Errorf("insert tracking %q: %w", key, err)
	}
	return nil
}
