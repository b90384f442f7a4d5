package closet

import (
	"slices"
	"strings"
	"time"
)

// Categories are the seasons an item may be tagged with.
var Categories = []string{"winter", "spring", "autumn", "summer"}

const (
	msgTitleRequired = "A title is required."
	msgCategories    = "Categories must be one or more of the following: winter, spring, autumn, summer."
	msgColors        = "Colors must be non-empty strings."
	msgItemNotFound  = "Closet not found"
	maxTitleLen      = 200
	maxListLen       = 32
)

// Item is one closet record. Photo is the stored image file name.
type Item struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user"`
	Title      string    `json:"title"`
	Categories []string  `json:"categories"`
	Colors     []string  `json:"colors"`
	Photo      string    `json:"photo"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Validate checks the fields a client controls.
func (it Item) Validate() error {
	const op = "closet.Validate"

	if strings.TrimSpace(it.Title) == "" {
		return invalid(op, msgTitleRequired)
	}
	if len(it.Title) > maxTitleLen {
		return invalid(op, "A title must have at most 200 characters.")
	}
	if len(it.Categories) > maxListLen || len(it.Colors) > maxListLen {
		return invalid(op, "Too many categories or colors.")
	}
	for _, c := range it.Categories {
		if !slices.Contains(Categories, c) {
			return invalid(op, msgCategories)
		}
	}
	for _, c := range it.Colors {
		if strings.TrimSpace(c) == "" {
			return invalid(op, msgColors)
		}
	}
	return nil
}

// NormalizeList turns form values into a list. A single value is split on
// commas, so both "a,b" and repeated fields are accepted. Entries are trimmed.
func NormalizeList(values []string) []string {
	out := []string{}
	switch len(values) {
	case 0:
		return out
	case 1:
		if values[0] == "" {
			return out
		}
		values = strings.Split(values[0], ",")
	}
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
