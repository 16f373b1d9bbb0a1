// Package store persists bridge state in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rbright/glassbridge/internal/bridge"
	"github.com/rbright/glassbridge/internal/logging"
)

// suffixDigits is how many trailing digits identify a number whose country or
// trunk prefix differs from the stored contact.
const suffixDigits = 7

// Store is the SQLite-backed state store.
type Store struct {
	db *sql.DB
}

// DefaultPath resolves state.db next to the runtime log.
func DefaultPath() (string, error) {
	dir, err := logging.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate state db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS notification_channels (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			importance  INTEGER NOT NULL,
			vibration   INTEGER NOT NULL DEFAULT 0,
			lights      INTEGER NOT NULL DEFAULT 0,
			show_badge  INTEGER NOT NULL DEFAULT 0,
			silent      INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS contacts (
			number       TEXT PRIMARY KEY,
			normalized   TEXT NOT NULL,
			display_name TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS contacts_normalized ON contacts (normalized);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SecureString reads one setting; a missing row reports found=false.
func (s *Store) SecureString(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", name, err)
	}
	return value, true, nil
}

// PutSetting upserts one setting.
func (s *Store) PutSetting(ctx context.Context, name string, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", name, err)
	}
	return nil
}

// AppendListSetting adds entry to a colon-separated list setting unless an
// identical entry is already present.
func (s *Store) AppendListSetting(ctx context.Context, name string, entry string) error {
	current, _, err := s.SecureString(ctx, name)
	if err != nil {
		return err
	}
	for _, existing := range strings.Split(current, ":") {
		if existing == entry {
			return nil
		}
	}
	if current != "" {
		entry = current + ":" + entry
	}
	return s.PutSetting(ctx, name, entry)
}

// NotificationChannel loads a stored channel by id.
func (s *Store) NotificationChannel(ctx context.Context, id string) (bridge.NotificationChannel, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, importance, vibration, lights, show_badge, silent
		FROM notification_channels WHERE id = ?`, id)

	var ch bridge.NotificationChannel
	var importance int
	err := row.Scan(&ch.ID, &ch.Name, &ch.Description, &importance, &ch.Vibration, &ch.Lights, &ch.ShowBadge, &ch.Silent)
	if errors.Is(err, sql.ErrNoRows) {
		return bridge.NotificationChannel{}, false, nil
	}
	if err != nil {
		return bridge.NotificationChannel{}, false, fmt.Errorf("read notification channel %s: %w", id, err)
	}
	ch.Importance = bridge.Importance(importance)
	return ch, true, nil
}

// SaveNotificationChannel creates or replaces a channel.
func (s *Store) SaveNotificationChannel(ctx context.Context, ch bridge.NotificationChannel) error {
	if strings.TrimSpace(ch.ID) == "" {
		return errors.New("notification channel id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_channels (id, name, description, importance, vibration, lights, show_badge, silent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			importance = excluded.importance,
			vibration = excluded.vibration,
			lights = excluded.lights,
			show_badge = excluded.show_badge,
			silent = excluded.silent`,
		ch.ID, ch.Name, ch.Description, int(ch.Importance), ch.Vibration, ch.Lights, ch.ShowBadge, ch.Silent,
	)
	if err != nil {
		return fmt.Errorf("write notification channel %s: %w", ch.ID, err)
	}
	return nil
}

// Contact is one caller-ID entry.
type Contact struct {
	Number      string
	DisplayName string
}

// PutContact upserts a contact keyed by its number as entered.
func (s *Store) PutContact(ctx context.Context, number string, displayName string) error {
	normalized := NormalizeNumber(number)
	if normalized == "" {
		return fmt.Errorf("phone number %q has no digits", number)
	}
	if strings.TrimSpace(displayName) == "" {
		return errors.New("display name is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (number, normalized, display_name) VALUES (?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET normalized = excluded.normalized, display_name = excluded.display_name`,
		number, normalized, displayName,
	)
	if err != nil {
		return fmt.Errorf("write contact: %w", err)
	}
	return nil
}

// Contacts lists every stored contact ordered by display name.
func (s *Store) Contacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT number, display_name FROM contacts ORDER BY display_name COLLATE NOCASE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Number, &c.DisplayName); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// CallerDisplayName resolves number to a contact name: exact digit match
// first, then a trailing-digits match. Not found is not an error.
func (s *Store) CallerDisplayName(ctx context.Context, number string) (string, bool, error) {
	normalized := NormalizeNumber(number)
	if normalized == "" {
		return "", false, nil
	}

	name, found, err := s.lookupContact(ctx, "SELECT display_name FROM contacts WHERE normalized = ? LIMIT 1", normalized)
	if err != nil || found {
		return name, found, err
	}
	if len(normalized) < suffixDigits {
		return "", false, nil
	}

	suffix := normalized[len(normalized)-suffixDigits:]
	return s.lookupContact(ctx, `
		SELECT display_name FROM contacts
		WHERE length(normalized) >= ? AND substr(normalized, -?) = ?
		ORDER BY number LIMIT 1`, suffixDigits, suffixDigits, suffix)
}

func (s *Store) lookupContact(ctx context.Context, query string, args ...any) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup contact: %w", err)
	}
	return name, true, nil
}

// NormalizeNumber keeps only the digits of a phone number.
func NormalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
