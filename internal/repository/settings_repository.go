package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/vodgrabba/internal/domain"
	"github.com/iconidentify/vodgrabba/pkg/crypto"
)

// SettingAuthToken is the key of the saved Twitch OAuth token.
const SettingAuthToken = "auth_token"

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteSettingsRepository implements SettingsRepository on a SQLite file.
// When a passphrase is configured, values are sealed before they are stored.
type SQLiteSettingsRepository struct {
	db         *sql.DB
	passphrase string
}

// NewSQLiteSettingsRepository opens (and creates if needed) the settings database at path.
func NewSQLiteSettingsRepository(path, passphrase string) (*SQLiteSettingsRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create settings dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	// A single connection keeps :memory: databases and file locks consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings schema: %w", err)
	}

	return &SQLiteSettingsRepository{
		db:         db,
		passphrase: passphrase,
	}, nil
}

// Close releases the database handle.
func (r *SQLiteSettingsRepository) Close() error {
	return r.db.Close()
}

// Get returns the value for key or domain.ErrSettingNotFound.
func (r *SQLiteSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrSettingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query setting %q: %w", key, err)
	}

	if crypto.IsSealed(value) {
		if r.passphrase == "" {
			return "", fmt.Errorf("setting %q is sealed: SETTINGS_PASSPHRASE is required", key)
		}
		value, err = crypto.Open(value, r.passphrase)
		if err != nil {
			return "", fmt.Errorf("unseal setting %q: %w", key, err)
		}
	}

	return string(value), nil
}

// Set stores value under key, replacing any previous value.
func (r *SQLiteSettingsRepository) Set(ctx context.Context, key, value string) error {
	stored := []byte(value)
	if r.passphrase != "" {
		sealed, err := crypto.Seal(stored, r.passphrase)
		if err != nil {
			return fmt.Errorf("seal setting %q: %w", key, err)
		}
		stored = sealed
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, stored, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store setting %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SQLiteSettingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}
