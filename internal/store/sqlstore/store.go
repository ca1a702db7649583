package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const defaultMaxMessageLength = 1000

// SQLStore implements store.Store on top of database/sql.
// It speaks both sqlite3 (tests, development) and postgres (deployment).
type SQLStore struct {
	db         *sql.DB
	driverName string

	// MaxMessageLength is the rune count messages are truncated to on append.
	MaxMessageLength int
}

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// sqlite serializes writers anyway, and a single connection keeps
		// an in-memory database shared across goroutines.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{
		db:               db,
		driverName:       driverName,
		MaxMessageLength: defaultMaxMessageLength,
	}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createTables() error {
	// Simplified for brevity, ideally use migrations
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		permissions INTEGER NOT NULL DEFAULT 0,
		last_seen DATETIME NOT NULL,
		date_created DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		user_id INTEGER NOT NULL,
		contact_id INTEGER NOT NULL,
		contact_group TEXT,
		date_created DATETIME NOT NULL,
		PRIMARY KEY (user_id, contact_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (contact_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		is_group_chat BOOLEAN NOT NULL DEFAULT FALSE,
		direct_key TEXT UNIQUE,
		date_created DATETIME NOT NULL,
		date_modified DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_chat_link (
		user_id INTEGER NOT NULL,
		chat_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, chat_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS removed_chats (
		user_id INTEGER NOT NULL,
		chat_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, chat_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		sender_id INTEGER NOT NULL,
		recipient_id INTEGER,
		text TEXT NOT NULL,
		was_read BOOLEAN NOT NULL DEFAULT FALSE,
		date_created DATETIME NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE,
		FOREIGN KEY (sender_id) REFERENCES users(id),
		FOREIGN KEY (recipient_id) REFERENCES users(id)
	);
	`

	if s.driverName == "postgres" {
		// Adjust for Postgres syntax
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMP WITH TIME ZONE")
	}

	_, err := s.db.Exec(query)
	return err
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

// placeholders returns a comma-joined list of n parameter markers for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// isUniqueViolation reports whether the error is a unique-constraint
// rejection from either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func intArgs(ids []int) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
