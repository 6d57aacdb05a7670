package domain

import (
	"bytes"
	"encoding/json"
)

// snapshot is the export envelope: {"categories":[...]}.
type snapshot struct {
	Categories []snapshotCategory `json:"categories"`
}

// snapshotCategory mirrors Category with pointer fields so that absent
// keys are distinguishable from empty values during validation.
type snapshotCategory struct {
	ID        *string            `json:"id"`
	Name      *string            `json:"name"`
	Color     *string            `json:"color"`
	Bookmarks *[]snapshotBookmark `json:"bookmarks"`
}

type snapshotBookmark struct {
	ID          *string `json:"id"`
	Name        *string `json:"name"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
}

// MarshalSnapshot serializes the full tree in the export envelope shape.
func MarshalSnapshot(tree Tree) ([]byte, error) {
	cats := tree
	if cats == nil {
		cats = Tree{}
	}
	return json.Marshal(struct {
		Categories Tree `json:"categories"`
	}{Categories: cats})
}

// ParseSnapshot validates and decodes an exported tree. It accepts the
// current {"categories":[...]} envelope and, as a compatibility fallback,
// a legacy bare array of category objects. Every entry must carry a name
// and a bookmarks sequence; anything else yields a ValidationError.
//
// Missing identifiers are regenerated so the no-duplicate-ID invariant
// holds for hand-edited files, and bookmark URLs are re-normalized.
func ParseSnapshot(data []byte) (Tree, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, NewValidationError("import: empty input")
	}

	var raw []snapshotCategory
	switch trimmed[0] {
	case '{':
		var snap snapshot
		if err := json.Unmarshal(trimmed, &snap); err != nil {
			return nil, NewValidationError("import: invalid JSON: %v", err)
		}
		if snap.Categories == nil {
			return nil, NewValidationError("import: missing categories array")
		}
		raw = snap.Categories
	case '[':
		// Legacy shape: bare array of categories.
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, NewValidationError("import: invalid JSON: %v", err)
		}
	default:
		return nil, NewValidationError("import: expected object or array")
	}

	tree := make(Tree, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, rc := range raw {
		if rc.Name == nil {
			return nil, NewValidationError("import: category %d has no name", i)
		}
		if rc.Bookmarks == nil {
			return nil, NewValidationError("import: category %q has no bookmarks array", *rc.Name)
		}

		cat := Category{
			Name:      *rc.Name,
			Bookmarks: make([]Bookmark, 0, len(*rc.Bookmarks)),
		}
		if rc.ID != nil && *rc.ID != "" && !seen[*rc.ID] {
			cat.ID = *rc.ID
		} else {
			cat.ID = NewID()
		}
		seen[cat.ID] = true
		if rc.Color != nil {
			cat.Color = *rc.Color
		}

		for j, rb := range *rc.Bookmarks {
			if rb.Name == nil || rb.URL == nil {
				return nil, NewValidationError("import: bookmark %d in category %q is malformed", j, cat.Name)
			}
			bm := Bookmark{
				Name: *rb.Name,
				URL:  NormalizeURL(*rb.URL),
			}
			if rb.ID != nil && *rb.ID != "" && !seen[*rb.ID] {
				bm.ID = *rb.ID
			} else {
				bm.ID = NewID()
			}
			seen[bm.ID] = true
			if rb.Description != nil {
				bm.Description = *rb.Description
			}
			cat.Bookmarks = append(cat.Bookmarks, bm)
		}

		tree = append(tree, cat)
	}

	return tree, nil
}
