package seed

import (
	"fmt"

	"github.com/pbataille/shelf/internal/domain"
)

// Mapper converts a seed file config into a domain tree.
type Mapper struct{}

// NewMapper creates a new seed mapper
func NewMapper() *Mapper {
	return &Mapper{}
}

const defaultColor = "#4a90d9"

// MapTree converts a FileConfig to a domain.Tree, generating fresh IDs
// and normalizing bookmark URLs. Entries without a name or without a URL
// are rejected so a broken seed file fails loudly at startup.
func (m *Mapper) MapTree(config *FileConfig) (domain.Tree, error) {
	tree := make(domain.Tree, 0, len(config.Categories))

	for i, entry := range config.Categories {
		if entry.Name == "" {
			return nil, fmt.Errorf("seed category %d has no name", i)
		}

		color := entry.Color
		if color == "" {
			color = defaultColor
		}

		cat := domain.Category{
			ID:        domain.NewID(),
			Name:      entry.Name,
			Color:     color,
			Bookmarks: make([]domain.Bookmark, 0, len(entry.Bookmarks)),
		}

		for j, bm := range entry.Bookmarks {
			if bm.Name == "" || bm.URL == "" {
				return nil, fmt.Errorf("seed bookmark %d in category %q is missing name or url", j, entry.Name)
			}
			cat.Bookmarks = append(cat.Bookmarks, domain.Bookmark{
				ID:          domain.NewID(),
				Name:        bm.Name,
				URL:         domain.NormalizeURL(bm.URL),
				Description: bm.Description,
			})
		}

		tree = append(tree, cat)
	}

	if len(tree) == 0 {
		return nil, fmt.Errorf("no categories found in seed file")
	}

	return tree, nil
}
