package store

import (
	"context"
	"path/filepath"
	"testing"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// backends lists the Store implementations under test.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { fs.Close() })

	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{"file": fs, "sqlite": sq}
}

func TestStore_ReadAbsentReportsNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc := testDoc{Name: "default"}
			found, err := s.Read(context.Background(), "u1", KindConfig, &doc)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if found {
				t.Fatal("found = true for absent document")
			}
			if doc.Name != "default" {
				t.Errorf("out was modified on absent read: %+v", doc)
			}
		})
	}
}

func TestStore_WriteThenRead(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := testDoc{Name: "arjun", Count: 3}
			if err := s.Write(ctx, "u1", KindConfig, in); err != nil {
				t.Fatalf("Write: %v", err)
			}

			var out testDoc
			found, err := s.Read(ctx, "u1", KindConfig, &out)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !found {
				t.Fatal("found = false after write")
			}
			if out != in {
				t.Errorf("round trip = %+v, want %+v", out, in)
			}
		})
	}
}

func TestStore_WriteReplacesWholeDocument(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Write(ctx, "u1", KindMemory, testDoc{Name: "first", Count: 1}); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := s.Write(ctx, "u1", KindMemory, testDoc{Name: "second"}); err != nil {
				t.Fatalf("Write: %v", err)
			}

			var out testDoc
			if _, err := s.Read(ctx, "u1", KindMemory, &out); err != nil {
				t.Fatalf("Read: %v", err)
			}
			if out.Name != "second" || out.Count != 0 {
				t.Errorf("got %+v, want full replacement", out)
			}
		})
	}
}

func TestStore_KindsAreIndependent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Write(ctx, "u1", KindConfig, testDoc{Name: "cfg"}); err != nil {
				t.Fatalf("Write: %v", err)
			}

			var out testDoc
			found, err := s.Read(ctx, "u1", KindMessages, &out)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if found {
				t.Error("messages document should not exist")
			}
		})
	}
}

func TestStore_DeleteUserRemovesAllKinds(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, kind := range []Kind{KindConfig, KindMessages, KindMemory} {
				if err := s.Write(ctx, "u1", kind, testDoc{Name: string(kind)}); err != nil {
					t.Fatalf("Write %s: %v", kind, err)
				}
			}
			if err := s.DeleteUser(ctx, "u1"); err != nil {
				t.Fatalf("DeleteUser: %v", err)
			}

			for _, kind := range []Kind{KindConfig, KindMessages, KindMemory} {
				var out testDoc
				found, err := s.Read(ctx, "u1", kind, &out)
				if err != nil {
					t.Fatalf("Read %s: %v", kind, err)
				}
				if found {
					t.Errorf("%s survived DeleteUser", kind)
				}
			}
		})
	}
}

func TestStore_ListUsers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users, err := s.ListUsers(ctx)
			if err != nil {
				t.Fatalf("ListUsers: %v", err)
			}
			if len(users) != 0 {
				t.Fatalf("fresh store has users: %v", users)
			}

			if err := s.Write(ctx, "bob", KindConfig, testDoc{}); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := s.Write(ctx, "alice", KindConfig, testDoc{}); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := s.Write(ctx, "alice", KindMemory, testDoc{}); err != nil {
				t.Fatalf("Write: %v", err)
			}

			users, err = s.ListUsers(ctx)
			if err != nil {
				t.Fatalf("ListUsers: %v", err)
			}
			if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
				t.Errorf("users = %v, want [alice bob]", users)
			}
		})
	}
}

func TestFileStore_RejectsPathTraversalUserIDs(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer fs.Close()

	for _, bad := range []string{"", "..", ".", "a/b", `a\b`} {
		if err := fs.Write(context.Background(), bad, KindConfig, testDoc{}); err == nil {
			t.Errorf("user id %q accepted", bad)
		}
	}
}
