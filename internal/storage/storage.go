package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Delivery outcomes recorded in the journal. They mirror the reply the user got.
const (
	OutcomeDelivered         = "delivered"
	OutcomeExtractionError   = "extraction_error"
	OutcomeUnknownError      = "unknown_error"
	OutcomeNoFileFound       = "no_file_found"
	OutcomeAmbiguousFiles    = "ambiguous_files"
	OutcomeUnsupportedFormat = "unsupported_format"
	OutcomeTooLarge          = "too_large"
	OutcomeDeliveryError     = "delivery_error"
)

// Delivery is one journal row: a handled message that carried a URL.
type Delivery struct {
	ID         int64
	RequestID  string
	ChatID     int64
	MessageID  int
	UserID     int64
	URL        string
	Mode       string
	Outcome    string
	Decision   string // classifier decision, empty when the fetch failed
	FileCount  int
	Bytes      int64
	DurationMs int64
	Error      string
	CreatedAt  time.Time
}

// DeliveryFilter narrows journal queries. Zero values mean "any".
type DeliveryFilter struct {
	ChatID  int64
	Outcome string
}

type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	LastSeen     time.Time
}

type Storage interface {
	DeliveryRepository
	UserRepository
	MaintenanceRepository
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string // Original path without query params, for file size check
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	// Save original path for file operations (before adding query params)
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	// Note: modernc.org/sqlite doesn't support _journal_mode query param,
	// so we set it via PRAGMA after opening the connection
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection avoids "database is locked" under concurrent handlers.
	// Journal writes are tiny, so serialising them costs nothing.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Set WAL mode explicitly - the _journal_mode query param doesn't work with modernc.org/sqlite
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger, dbPath: originalPath}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		chat_id INTEGER NOT NULL,
		message_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL,
		mode TEXT NOT NULL,
		outcome TEXT NOT NULL,
		file_count INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at);
	CREATE INDEX IF NOT EXISTS idx_deliveries_chat_id ON deliveries(chat_id);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		language_code TEXT,
		last_seen INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	if err := s.migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

func (s *SQLiteStore) migrate() error {
	// decision was added after the first release of the journal
	var count int
	err := s.db.QueryRow("SELECT count(*) FROM pragma_table_info('deliveries') WHERE name='decision'").Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		s.logger.Info("migrating deliveries table: adding decision")
		if _, err := s.db.Exec("ALTER TABLE deliveries ADD COLUMN decision TEXT DEFAULT ''"); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint forces a WAL checkpoint to flush all pending writes to the main database file.
func (s *SQLiteStore) Checkpoint() error {
	var busy, log, checkpointed int
	err := s.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &log, &checkpointed)
	if err != nil {
		return fmt.Errorf("checkpoint query failed: %w", err)
	}

	s.logger.Info("WAL checkpoint result",
		"busy", busy,
		"log_frames", log,
		"checkpointed_frames", checkpointed,
	)

	if busy != 0 {
		return fmt.Errorf("checkpoint blocked by reader (busy=%d)", busy)
	}
	if log > 0 && checkpointed < log {
		return fmt.Errorf("incomplete checkpoint: %d/%d frames", checkpointed, log)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	// Checkpoint WAL to ensure all writes are flushed to main database
	if err := s.Checkpoint(); err != nil {
		s.logger.Warn("failed to checkpoint WAL before close", "error", err)
	}
	return s.db.Close()
}
