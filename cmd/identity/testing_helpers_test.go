package identity

import (
	"context"
	"testing"

	"closet/cmd/internal/sqlitedb"
	"closet/cmd/security/password"
)

func cheapHasher() password.Hasher {
	p := password.DefaultParams()
	p.MemoryKiB = 8 * 1024
	p.Iterations = 1
	p.Parallelism = 1
	return password.NewHasher(p)
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := sqlitedb.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteStore(context.Background(), db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func newAccounts(t *testing.T, st Store) *Accounts {
	t.Helper()

	a, err := NewAccounts(st, cheapHasher())
	if err != nil {
		t.Fatalf("new accounts: %v", err)
	}
	return a
}
