package domain

import "strings"

// FilterTree returns a read-only filtered view of the tree: categories
// holding at least one bookmark whose name, url or description contains
// the query (case-insensitive substring). An empty or whitespace query
// returns the full tree unchanged.
func FilterTree(tree Tree, query string) Tree {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tree
	}

	out := make(Tree, 0, len(tree))
	for _, cat := range tree {
		var matched []Bookmark
		for _, bm := range cat.Bookmarks {
			if bookmarkMatches(bm, q) {
				matched = append(matched, bm)
			}
		}
		if len(matched) == 0 {
			continue
		}
		c := cat
		c.Bookmarks = matched
		out = append(out, c)
	}
	return out
}

func bookmarkMatches(bm Bookmark, q string) bool {
	return strings.Contains(strings.ToLower(bm.Name), q) ||
		strings.Contains(strings.ToLower(bm.URL), q) ||
		strings.Contains(strings.ToLower(bm.Description), q)
}
