package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements Store over an embedded SQLite database.
// Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and creates the users table when missing.
// The caller owns db.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("identity: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  password_changed_at INTEGER NULL,
  created_at INTEGER NOT NULL,
  CONSTRAINT uq_users_email UNIQUE (email)
)`)
	return err
}

// CreateUser inserts a validated user row.
func (s *SQLiteStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	const op = "identity.CreateUser"

	if strings.TrimSpace(in.ID) == "" || in.Email == "" || in.PasswordHash == "" {
		return User{}, invalid(op, "id, email and password hash are required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		in.ID, in.Name, in.Email, in.PasswordHash, in.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if sqliteIsUnique(err) {
			field := "unique"
			if strings.Contains(err.Error(), "users.email") {
				field = "email"
			}
			return User{}, ConflictError{Op: op, Field: field, Value: in.Email}
		}
		return User{}, err
	}

	return User{
		ID:           in.ID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    time.UnixMilli(in.CreatedAt.UnixMilli()).UTC(),
	}, nil
}

// GetUserByID loads a user by primary key.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByID", `id = ?`, id)
}

// GetUserByEmail loads a user by normalized email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByEmail", `email = ?`, NormalizeEmail(email))
}

func (s *SQLiteStore) getUser(ctx context.Context, op, where, arg string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, password_changed_at, created_at FROM users WHERE `+where,
		arg,
	)

	var (
		u         User
		changedAt sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &changedAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	if changedAt.Valid {
		t := time.UnixMilli(changedAt.Int64).UTC()
		u.PasswordChangedAt = &t
	}
	return u, nil
}

// UpdatePassword replaces the hash and stamps password_changed_at.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	const op = "identity.UpdatePassword"

	if passwordHash == "" {
		return invalid(op, "empty password hash")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, password_changed_at = ? WHERE id = ?`,
		passwordHash, changedAt.UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	return sqliteAffected(res, op)
}

// DeleteUser removes the user row.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	const op = "identity.DeleteUser"

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return sqliteAffected(res, op)
}

func sqliteAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

func sqliteIsUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		if code&0xff == sqlite3.SQLITE_CONSTRAINT {
			return strings.Contains(se.Error(), "UNIQUE")
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
