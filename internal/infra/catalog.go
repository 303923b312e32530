package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.IsEncrypted

const catalogDBName = "catalog.db"

// SQLCipherCatalog implements domain.RecordingCatalog on an encrypted
// SQLite database. The index survives reboots and can be queried without
// mounting whichever USB drive holds the footage.
type SQLCipherCatalog struct {
	db     *sql.DB
	dbPath string
}

// NewSQLCipherCatalog opens (or creates) the encrypted catalog. The key
// is used as the SQLCipher passphrase via PRAGMA key.
func NewSQLCipherCatalog(dataDir string, key []byte) (*SQLCipherCatalog, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, catalogDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted catalog: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted catalog: %w", err)
	}

	c := &SQLCipherCatalog{db: db, dbPath: dbPath}
	if err := c.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return c, nil
}

func (c *SQLCipherCatalog) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		path TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		frame_count INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		trigger TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_ended_at ON recordings(ended_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Save records one persisted artifact. Re-saving the same ID replaces the
// row.
func (c *SQLCipherCatalog) Save(ctx context.Context, rec domain.Recording) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO recordings
			(id, session_id, path, started_at, ended_at, frame_count, size_bytes, trigger)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Path,
		rec.StartedAt.Unix(), rec.EndedAt.Unix(),
		rec.FrameCount, rec.SizeBytes, rec.Trigger,
	)
	if err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	return nil
}

// List returns the most recent recordings, newest first.
func (c *SQLCipherCatalog) List(ctx context.Context, limit int) ([]domain.Recording, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, session_id, path, started_at, ended_at, frame_count, size_bytes, trigger
		FROM recordings ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var out []domain.Recording
	for rows.Next() {
		var rec domain.Recording
		var startedAt, endedAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Path,
			&startedAt, &endedAt, &rec.FrameCount, &rec.SizeBytes, &rec.Trigger); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		rec.StartedAt = time.Unix(startedAt, 0)
		rec.EndedAt = time.Unix(endedAt, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (c *SQLCipherCatalog) Path() string {
	return c.dbPath
}

// Close releases the database connection.
func (c *SQLCipherCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

var _ domain.RecordingCatalog = (*SQLCipherCatalog)(nil)
