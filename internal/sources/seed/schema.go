package seed

// FileConfig is the root structure of the starter-tree yaml file.
type FileConfig struct {
	Categories []CategoryEntry `yaml:"categories"`
}

// CategoryEntry represents a category in the YAML
type CategoryEntry struct {
	Name      string          `yaml:"name"`
	Color     string          `yaml:"color"`
	Bookmarks []BookmarkEntry `yaml:"bookmarks"`
}

// BookmarkEntry represents a single bookmark entry in the YAML
type BookmarkEntry struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}
