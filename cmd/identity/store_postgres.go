package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Schema and table identifiers are quoted through pgx.Identifier.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "closet").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !PgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "closet",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// Migrate creates the schema and users table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	users := PgIdent(s.schema, "users")
	ddl := `CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{s.schema}.Sanitize() + `;
CREATE TABLE IF NOT EXISTS ` + users + ` (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  password_changed_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_users_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_users_email UNIQUE (email)
);`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

const pgUserColumns = `id, name, email, password_hash, password_changed_at, created_at`

// CreateUser inserts a validated user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(in.ID) == "" || in.Email == "" || in.PasswordHash == "" {
		return User{}, invalid(op, "id, email and password hash are required")
	}

	users := PgIdent(s.schema, "users")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+users+` (id, name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		in.ID, in.Name, in.Email, in.PasswordHash, in.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field, Value: in.Email}
		}
		return User{}, err
	}

	return User{
		ID:           in.ID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.CreatedAt,
	}, nil
}

// GetUserByID loads a user by primary key.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByID", "id", id)
}

// GetUserByEmail loads a user by normalized email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByEmail", "email", NormalizeEmail(email))
}

func (s *PostgresStore) getUser(ctx context.Context, op, column, value string) (User, error) {
	users := PgIdent(s.schema, "users")
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM `+users+` WHERE `+column+` = $1`,
		value,
	)

	var (
		u         User
		changedAt *time.Time
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &changedAt, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	if changedAt != nil {
		t := changedAt.UTC()
		u.PasswordChangedAt = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// UpdatePassword replaces the hash and stamps password_changed_at.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	const op = "identity.UpdatePassword"

	if passwordHash == "" {
		return invalid(op, "empty password hash")
	}
	users := PgIdent(s.schema, "users")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+users+` SET password_hash = $2, password_changed_at = $3 WHERE id = $1`,
		id, passwordHash, changedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// DeleteUser removes the user row. Items cascade through their foreign key.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	const op = "identity.DeleteUser"

	users := PgIdent(s.schema, "users")
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+users+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// PgIdentIsValid reports whether s is a plain SQL identifier.
func PgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// PgIdent returns a quoted schema-qualified identifier.
func PgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email", strings.Contains(c, "email"):
		return "email", true
	case c == "users_pkey":
		return "id", true
	default:
		return "unique", true
	}
}
