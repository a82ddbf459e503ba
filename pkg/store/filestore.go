package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps one JSON document per (user, kind) under
// <root>/users/<userID>/<kind>.json. Writes go through a temp file and
// rename so a crashed write never leaves a torn document behind.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("file store root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "users"), 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) docPath(userID string, kind Kind) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, "users", userID, string(kind)+".json"), nil
}

func (s *FileStore) Read(ctx context.Context, userID string, kind Kind, out any) (bool, error) {
	path, err := s.docPath(userID, kind)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read document %s/%s: %w", userID, kind, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode document %s/%s: %w", userID, kind, err)
	}
	return true, nil
}

func (s *FileStore) Write(ctx context.Context, userID string, kind Kind, doc any) error {
	path, err := s.docPath(userID, kind)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", userID, kind, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+string(kind)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp document: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace document %s/%s: %w", userID, kind, err)
	}
	return nil
}

func (s *FileStore) DeleteUser(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, "users", userID)); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

func (s *FileStore) ListUsers(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "users"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			users = append(users, e.Name())
		}
	}
	sort.Strings(users)
	return users, nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.ContainsAny(userID, "/\\") || userID == "." || userID == ".." {
		return fmt.Errorf("invalid user id %q", userID)
	}
	return nil
}
