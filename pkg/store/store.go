package store

import "context"

// Kind names a per-user document.
type Kind string

const (
	KindConfig   Kind = "config"
	KindMessages Kind = "messages"
	KindMemory   Kind = "memory"
)

// Store is per-user document storage addressable by (userID, kind).
// Reads of absent documents are not errors: Read reports found=false and
// leaves out untouched so callers keep their defaults. Writes replace the
// whole document and are durable before returning.
type Store interface {
	Read(ctx context.Context, userID string, kind Kind, out any) (found bool, err error)
	Write(ctx context.Context, userID string, kind Kind, doc any) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]string, error)
	Close() error
}
