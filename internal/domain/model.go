package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category is a named, colored, ordered group of bookmarks.
//
// Order is significant: the UI reorders categories and bookmarks by
// drag-and-drop, and the sequence must survive persistence round-trips.
// A Category is uniquely identified by its ID within one user's dataset.
type Category struct {
	// ID is the canonical unique identifier.
	// Generated at creation, never reused.
	ID string `json:"id"`

	// Name is the display name. Example: "Work"
	Name string `json:"name"`

	// Color is a hex color used for rendering. Example: "#4a90d9"
	Color string `json:"color"`

	// Bookmarks is the ordered sequence owned by this category.
	// Deleting the category deletes its bookmarks.
	Bookmarks []Bookmark `json:"bookmarks"`
}

// Bookmark is a named URL with an optional description.
// It belongs to exactly one Category at a time.
type Bookmark struct {
	ID string `json:"id"`

	Name string `json:"name"`

	// URL is normalized to always carry a scheme (https:// by default).
	URL string `json:"url"`

	// Description may be empty.
	Description string `json:"description"`
}

// Tree is one user's full category/bookmark dataset, in display order.
type Tree []Category

// User is a registered account record.
type User struct {
	// ID is derived deterministically from the normalized username
	// (see DeriveUserID). It keys both the user record and the dataset.
	ID string `json:"id"`

	// Username is the display name as entered at registration.
	Username string `json:"username"`

	// PasswordHash is a one-way digest of the password.
	PasswordHash string `json:"passwordHash"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewID returns a fresh opaque identifier for categories and bookmarks.
func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of the tree. Mutating the copy never
// touches the original's bookmark slices.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, cat := range t {
		c := cat
		c.Bookmarks = make([]Bookmark, len(cat.Bookmarks))
		copy(c.Bookmarks, cat.Bookmarks)
		out[i] = c
	}
	return out
}

// DefaultTree returns the starter categories a fresh user gets when no
// seed file is configured.
func DefaultTree() Tree {
	return Tree{
		{
			ID:        NewID(),
			Name:      "General",
			Color:     "#4a90d9",
			Bookmarks: []Bookmark{},
		},
	}
}
