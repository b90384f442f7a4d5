package closet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore implements Store over an embedded SQLite database.
// List fields are stored as JSON text and timestamps as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and creates the items table when missing.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("closet: nil db")
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("closet: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS closet_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  categories TEXT NOT NULL DEFAULT '[]',
  colors TEXT NOT NULL DEFAULT '[]',
  photo TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_closet_items_user_id ON closet_items (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_closet_items_photo ON closet_items (user_id, photo)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const sqliteItemColumns = `id, user_id, title, categories, colors, photo, created_at, updated_at`

// List returns the user's items, oldest first.
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteItemColumns+` FROM closet_items WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanSQLiteItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get loads one item of the user.
func (s *SQLiteStore) Get(ctx context.Context, userID, id string) (Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteItemColumns+` FROM closet_items WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	it, err := scanSQLiteItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, notFound("closet.Get", msgItemNotFound)
	}
	return it, err
}

// GetByPhoto loads the user's item that owns photo.
func (s *SQLiteStore) GetByPhoto(ctx context.Context, userID, photo string) (Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteItemColumns+` FROM closet_items WHERE user_id = ? AND photo = ? LIMIT 1`,
		userID, photo,
	)
	it, err := scanSQLiteItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, notFound("closet.GetByPhoto", msgImageNotFound)
	}
	return it, err
}

// Create inserts it.
func (s *SQLiteStore) Create(ctx context.Context, it Item) (Item, error) {
	it.CreatedAt = stamp(it.CreatedAt)
	it.UpdatedAt = it.CreatedAt

	cats, cols, err := encodeLists(it)
	if err != nil {
		return Item{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO closet_items (`+sqliteItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.UserID, it.Title, cats, cols, it.Photo, it.CreatedAt.UnixMilli(), it.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return Item{}, err
	}
	return normalizeLists(it), nil
}

// Update replaces the mutable fields of an existing item.
func (s *SQLiteStore) Update(ctx context.Context, it Item) (Item, error) {
	it.UpdatedAt = stamp(it.UpdatedAt)

	cats, cols, err := encodeLists(it)
	if err != nil {
		return Item{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE closet_items SET title = ?, categories = ?, colors = ?, photo = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		it.Title, cats, cols, it.Photo, it.UpdatedAt.UnixMilli(), it.ID, it.UserID,
	)
	if err != nil {
		return Item{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Item{}, err
	}
	if n == 0 {
		return Item{}, notFound("closet.Update", msgItemNotFound)
	}
	return s.Get(ctx, it.UserID, it.ID)
}

// Delete removes one item and returns it.
func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) (Item, error) {
	it, err := s.Get(ctx, userID, id)
	if err != nil {
		return Item{}, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM closet_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return Item{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Item{}, notFound("closet.Delete", msgItemNotFound)
	}
	return it, nil
}

// DeleteAllForUser removes every item of userID and returns their photos.
func (s *SQLiteStore) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM closet_items WHERE user_id = ?`, userID); err != nil {
		return nil, err
	}
	photos := make([]string, 0, len(items))
	for _, it := range items {
		if it.Photo != "" {
			photos = append(photos, it.Photo)
		}
	}
	return photos, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteItem(row rowScanner) (Item, error) {
	var (
		it                   Item
		cats, cols           string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&it.ID, &it.UserID, &it.Title, &cats, &cols, &it.Photo, &createdAt, &updatedAt); err != nil {
		return Item{}, err
	}
	if err := json.Unmarshal([]byte(cats), &it.Categories); err != nil {
		return Item{}, fmt.Errorf("closet: decode categories: %w", err)
	}
	if err := json.Unmarshal([]byte(cols), &it.Colors); err != nil {
		return Item{}, fmt.Errorf("closet: decode colors: %w", err)
	}
	it.CreatedAt = time.UnixMilli(createdAt).UTC()
	it.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return normalizeLists(it), nil
}

func encodeLists(it Item) (string, string, error) {
	it = normalizeLists(it)
	cats, err := json.Marshal(it.Categories)
	if err != nil {
		return "", "", err
	}
	cols, err := json.Marshal(it.Colors)
	if err != nil {
		return "", "", err
	}
	return string(cats), string(cols), nil
}

func normalizeLists(it Item) Item {
	if it.Categories == nil {
		it.Categories = []string{}
	}
	if it.Colors == nil {
		it.Colors = []string{}
	}
	return it
}
