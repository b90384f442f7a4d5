package closet

import (
	"context"
	"time"
)

// Store persists items. Every lookup is scoped to the owning user, so an
// item of another user reads as missing.
type Store interface {
	List(ctx context.Context, userID string) ([]Item, error)
	Get(ctx context.Context, userID, id string) (Item, error)
	GetByPhoto(ctx context.Context, userID, photo string) (Item, error)
	Create(ctx context.Context, it Item) (Item, error)
	Update(ctx context.Context, it Item) (Item, error)
	Delete(ctx context.Context, userID, id string) (Item, error)
	// DeleteAllForUser removes every item of userID and returns their photos.
	DeleteAllForUser(ctx context.Context, userID string) ([]string, error)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Millisecond)
}
