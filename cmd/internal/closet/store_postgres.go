package closet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"closet/cmd/identity"
)

// PostgresStore implements Store over PostgreSQL. Items reference the
// identity users table and cascade on user deletion.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresStore constructs a PostgresStore in schema (default "closet").
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("closet: nil pool")
	}
	if schema == "" {
		schema = "closet"
	}
	if !identity.PgIdentIsValid(schema) {
		return nil, fmt.Errorf("closet: invalid schema identifier")
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

// Migrate creates the items table. The users table must already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	items := s.table()
	users := identity.PgIdent(s.schema, "users")
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+items+` (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES `+users+`(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  categories TEXT[] NOT NULL DEFAULT '{}',
  colors TEXT[] NOT NULL DEFAULT '{}',
  photo TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_closet_items_id_ulid_len CHECK (char_length(id) = 26)
);
CREATE INDEX IF NOT EXISTS idx_closet_items_user_id ON `+items+` (user_id);
CREATE INDEX IF NOT EXISTS idx_closet_items_user_photo ON `+items+` (user_id, photo);`)
	return err
}

func (s *PostgresStore) table() string { return identity.PgIdent(s.schema, "closet_items") }

const pgItemColumns = `id, user_id, title, categories, colors, photo, created_at, updated_at`

// List returns the user's items, oldest first.
func (s *PostgresStore) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgItemColumns+` FROM `+s.table()+` WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanPgItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get loads one item of the user.
func (s *PostgresStore) Get(ctx context.Context, userID, id string) (Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgItemColumns+` FROM `+s.table()+` WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	it, err := scanPgItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, notFound("closet.Get", msgItemNotFound)
	}
	return it, err
}

// GetByPhoto loads the user's item that owns photo.
func (s *PostgresStore) GetByPhoto(ctx context.Context, userID, photo string) (Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgItemColumns+` FROM `+s.table()+` WHERE user_id = $1 AND photo = $2 LIMIT 1`,
		userID, photo,
	)
	it, err := scanPgItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, notFound("closet.GetByPhoto", msgImageNotFound)
	}
	return it, err
}

// Create inserts it.
func (s *PostgresStore) Create(ctx context.Context, it Item) (Item, error) {
	it = normalizeLists(it)
	it.CreatedAt = stamp(it.CreatedAt)
	it.UpdatedAt = it.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+pgItemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		it.ID, it.UserID, it.Title, it.Categories, it.Colors, it.Photo, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

// Update replaces the mutable fields of an existing item.
func (s *PostgresStore) Update(ctx context.Context, it Item) (Item, error) {
	it = normalizeLists(it)
	it.UpdatedAt = stamp(it.UpdatedAt)

	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET title = $3, categories = $4, colors = $5, photo = $6, updated_at = $7
		  WHERE id = $1 AND user_id = $2
		RETURNING `+pgItemColumns,
		it.ID, it.UserID, it.Title, it.Categories, it.Colors, it.Photo, it.UpdatedAt,
	)
	out, err := scanPgItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, notFound("closet.Update", msgItemNotFound)
	}
	return out, err
}

// Delete removes one item and returns it.
func (s *PostgresStore) Delete(ctx context.Context, userID, id string) (Item, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM `+s.table()+` WHERE id = $1 AND user_id = $2 RETURNING `+pgItemColumns,
		id, userID,
	)
	it, err := scanPgItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, notFound("closet.Delete", msgItemNotFound)
	}
	return it, err
}

// DeleteAllForUser removes every item of userID and returns their photos.
func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM `+s.table()+` WHERE user_id = $1 RETURNING photo`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	photos, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := photos[:0]
	for _, p := range photos {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func scanPgItem(row pgx.Row) (Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.UserID, &it.Title, &it.Categories, &it.Colors, &it.Photo, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return Item{}, err
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return normalizeLists(it), nil
}
