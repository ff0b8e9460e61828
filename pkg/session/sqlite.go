package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore persists sessions in an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (or creates) the session database at dbPath.
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "session").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info().Str("path", dbPath).Msg("Session store opened")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		sender_id  TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// CheckExists reports whether a session record exists for the sender.
// It never creates one.
func (s *SQLiteStore) CheckExists(ctx context.Context, senderID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM sessions WHERE sender_id = ?", senderID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr("checkExists", err)
	}
	return true, nil
}

// Get returns the sender's session, creating one on first contact.
func (s *SQLiteStore) Get(ctx context.Context, senderID string) (Session, error) {
	var sess Session
	var updatedAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT sender_id, session_id, updated_at FROM sessions WHERE sender_id = ?",
		senderID).Scan(&sess.SenderID, &sess.SessionID, &updatedAt)
	if err == nil {
		sess.UpdatedAt = time.UnixMilli(updatedAt)
		return sess, nil
	}
	if err != sql.ErrNoRows {
		return Session{}, storeErr("get", err)
	}

	sess = Session{
		SenderID:  senderID,
		SessionID: uuid.NewString(),
		UpdatedAt: time.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (sender_id, session_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(sender_id) DO NOTHING`,
		sess.SenderID, sess.SessionID, sess.UpdatedAt.UnixMilli())
	if err != nil {
		return Session{}, storeErr("get", err)
	}

	// A concurrent Get for the same sender may have won the insert; re-read
	// so both callers observe the same session identifier.
	err = s.db.QueryRowContext(ctx,
		"SELECT sender_id, session_id, updated_at FROM sessions WHERE sender_id = ?",
		senderID).Scan(&sess.SenderID, &sess.SessionID, &updatedAt)
	if err != nil {
		return Session{}, storeErr("get", err)
	}
	sess.UpdatedAt = time.UnixMilli(updatedAt)

	s.logger.Debug().
		Str("senderId", sess.SenderID).
		Str("sessionId", sess.SessionID).
		Msg("Session created")

	return sess, nil
}

// Set refreshes the sender's session record, creating it if absent.
func (s *SQLiteStore) Set(ctx context.Context, senderID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (sender_id, session_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(sender_id) DO UPDATE SET updated_at = excluded.updated_at`,
		senderID, uuid.NewString(), time.Now().UnixMilli())
	if err != nil {
		return storeErr("set", err)
	}
	return nil
}

// DeleteExpired removes sessions last touched before olderThan.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE updated_at < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, storeErr("deleteExpired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("deleteExpired", err)
	}
	return int(n), nil
}

// DB exposes the underlying handle for other tables in the bridge database.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
