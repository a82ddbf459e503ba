package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every per-user document in one documents table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS documents (
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			body TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY (user_id, kind)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init store schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Read(ctx context.Context, userID string, kind Kind, out any) (bool, error) {
	if err := validateUserID(userID); err != nil {
		return false, err
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE user_id = ? AND kind = ?`,
		userID, string(kind),
	).Scan(&body)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read document %s/%s: %w", userID, kind, err)
	}

	if err := json.Unmarshal([]byte(body), out); err != nil {
		return false, fmt.Errorf("decode document %s/%s: %w", userID, kind, err)
	}
	return true, nil
}

func (s *SQLiteStore) Write(ctx context.Context, userID string, kind Kind, doc any) error {
	if err := validateUserID(userID); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", userID, kind, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (user_id, kind, body, updated_at_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, kind) DO UPDATE SET body = excluded.body, updated_at_ms = excluded.updated_at_ms`,
		userID, string(kind), string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write document %s/%s: %w", userID, kind, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
