package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MaxGetMessagesLimit is the hard cap enforced by GetMessages per spec.md
// §4.1 ("Hard cap: limit ≤ 500").
const MaxGetMessagesLimit = 500

// Store is a transactional local record store backed by a single-file
// SQLite database with write-ahead logging. All statements share one
// pooled connection, so reads as well as writes run one at a time.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens or creates the database at path, runs pending migrations, and
// returns a handle. Fails with ErrStorageUnavailable if the path is
// unwritable or migrations conflict.
func Open(path string) (*Store, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Open", "package": "storage"})

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.WithError(err).Error("failed to create data directory")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// SQLite supports exactly one writer; a single pooled connection makes
	// that invariant hold without an extra application-level write lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		logger.WithError(err).Error("failed to ping database")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		logger.WithError(err).Error("migration failed")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	logger.Info("storage opened")
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	current := 0
	row := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		version, err := migrationVersion(entry.Name())
		if err != nil {
			return fmt.Errorf("malformed migration filename %q: %w", entry.Name(), err)
		}
		if version <= current {
			continue
		}

		sqlBytes, err := migrationFS.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return err
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying %s: %w", entry.Name(), err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

func migrationVersion(filename string) (int, error) {
	base := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(base, "_", 2)
	return strconv.Atoi(parts[0])
}

// nextSequence allocates a monotonically increasing per-conversation
// sequence number, used to honor the same-conversation ordering guarantee
// of spec.md §5 without relying on wall-clock timestamps.
func nextSequence(tx *sql.Tx, conversationID string) (int64, error) {
	_, err := tx.Exec(`INSERT INTO message_sequence (conversation_id, next_value) VALUES (?, 1)
		ON CONFLICT(conversation_id) DO NOTHING`, conversationID)
	if err != nil {
		return 0, err
	}
	var seq int64
	if err := tx.QueryRow(`UPDATE message_sequence SET next_value = next_value + 1
		WHERE conversation_id = ? RETURNING next_value - 1`, conversationID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
