package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/ulrichando/ParentShield/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	activityDBName = "activity.db"

	// DefaultActivityLimit is used when a caller asks for a non-positive count.
	DefaultActivityLimit = 50
	// MaxActivityLimit caps a single Recent query.
	MaxActivityLimit = 1000
	// activityRetention is the number of rows kept after each insert.
	activityRetention = 10000
)

// SQLCipherActivityLog implements domain.ActivityLog using a SQLCipher
// encrypted SQLite database keyed with the config store key.
type SQLCipherActivityLog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewActivityLog opens (or creates) the encrypted activity database in dataDir.
func NewActivityLog(dataDir string, key []byte) (*SQLCipherActivityLog, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, activityDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes access.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to activity database: %w", err)
	}

	l := &SQLCipherActivityLog{db: db, dbPath: dbPath}
	if err := l.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	_ = os.Chmod(dbPath, 0600)

	return l, nil
}

func (l *SQLCipherActivityLog) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		pid INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_created ON activity (created_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record appends an event, then trims the table to the retention limit.
func (l *SQLCipherActivityLog) Record(event domain.ActivityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if _, err := l.db.Exec(`INSERT INTO activity (kind, target, pid, created_at) VALUES (?, ?, ?, ?)`,
		event.Kind, event.Target, event.PID, ts.UnixMilli()); err != nil {
		return err
	}

	_, err := l.db.Exec(`DELETE FROM activity WHERE id NOT IN (SELECT id FROM activity ORDER BY id DESC LIMIT ?)`,
		activityRetention)
	return err
}

// Recent returns up to limit events, newest first.
func (l *SQLCipherActivityLog) Recent(limit int) ([]domain.ActivityEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit = ClampActivityLimit(limit)
	rows, err := l.db.Query(`SELECT id, kind, target, pid, created_at FROM activity ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.ActivityEvent, 0, limit)
	for rows.Next() {
		var ev domain.ActivityEvent
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Target, &ev.PID, &createdAt); err != nil {
			return nil, err
		}
		ev.Timestamp = time.UnixMilli(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Path returns the database file path.
func (l *SQLCipherActivityLog) Path() string {
	return l.dbPath
}

// Close releases the database connection.
func (l *SQLCipherActivityLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// ClampActivityLimit maps a requested history size onto [1, MaxActivityLimit].
func ClampActivityLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultActivityLimit
	case limit > MaxActivityLimit:
		return MaxActivityLimit
	default:
		return limit
	}
}

// Ensure SQLCipherActivityLog implements domain.ActivityLog.
var _ domain.ActivityLog = (*SQLCipherActivityLog)(nil)
