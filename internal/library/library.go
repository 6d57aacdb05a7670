package library

import (
	"context"
	"sync"
	"time"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/logger"
)

// Store is the slice of local persistence the library needs.
type Store interface {
	SaveDataset(ctx context.Context, userID string, tree domain.Tree) error
	SetLastChange(ctx context.Context, userID string, unixMillis int64) error
}

// Library owns one user's category tree in memory. Every mutation is
// synchronous and immediately followed by a whole-tree persistence write
// plus a lastchange write; there is no batching and no partial write.
//
// A storage failure does not roll the in-memory mutation back: the tree
// is already changed, only the persisted copy is stale. The error is
// returned so the caller can alert the user.
type Library struct {
	mu         sync.RWMutex
	userID     string
	tree       domain.Tree
	lastChange int64 // unix millis, monotonically non-decreasing

	store    Store
	logger   logger.Logger
	onChange func() // fired after each successful local mutation
	nowFn    func() int64
}

// New builds a library around an already-loaded tree.
func New(userID string, tree domain.Tree, lastChange int64, store Store, log logger.Logger) *Library {
	return &Library{
		userID:     userID,
		tree:       tree.Clone(),
		lastChange: lastChange,
		store:      store,
		logger:     log,
		nowFn:      func() int64 { return time.Now().UnixMilli() },
	}
}

// OnChange registers a hook fired after every local mutation, once the
// persistence write has been attempted. Used to schedule sync pushes;
// fire-and-forget from the mutation's perspective.
func (l *Library) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// AddCategory appends a new category to the end of the sequence.
func (l *Library) AddCategory(ctx context.Context, name, color string) (domain.Category, error) {
	l.mu.Lock()
	cat := domain.Category{
		ID:        domain.NewID(),
		Name:      name,
		Color:     color,
		Bookmarks: []domain.Bookmark{},
	}
	l.tree = append(l.tree, cat)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return cat, err
}

// UpdateCategory is a no-op returning false when the id is unknown.
func (l *Library) UpdateCategory(ctx context.Context, id, name, color string) (bool, error) {
	l.mu.Lock()
	idx := l.categoryIndexLocked(id)
	if idx < 0 {
		l.mu.Unlock()
		return false, nil
	}
	l.tree[idx].Name = name
	l.tree[idx].Color = color
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return true, err
}

// DeleteCategory removes a category and, with it, every bookmark it owns.
func (l *Library) DeleteCategory(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	idx := l.categoryIndexLocked(id)
	if idx < 0 {
		l.mu.Unlock()
		return false, nil
	}
	l.tree = append(l.tree[:idx], l.tree[idx+1:]...)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return true, err
}

// MoveCategory reorders a category to the given position. Out-of-range
// targets are clamped.
func (l *Library) MoveCategory(ctx context.Context, id string, toIndex int) (bool, error) {
	l.mu.Lock()
	idx := l.categoryIndexLocked(id)
	if idx < 0 {
		l.mu.Unlock()
		return false, nil
	}
	toIndex = clamp(toIndex, 0, len(l.tree)-1)
	cat := l.tree[idx]
	l.tree = append(l.tree[:idx], l.tree[idx+1:]...)
	l.tree = append(l.tree[:toIndex], append(domain.Tree{cat}, l.tree[toIndex:]...)...)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return true, err
}

// AddBookmark appends a bookmark to a category, normalizing the URL.
// The bool is false when the category does not exist.
func (l *Library) AddBookmark(ctx context.Context, categoryID, name, url, description string) (domain.Bookmark, bool, error) {
	l.mu.Lock()
	idx := l.categoryIndexLocked(categoryID)
	if idx < 0 {
		l.mu.Unlock()
		return domain.Bookmark{}, false, nil
	}
	bm := domain.Bookmark{
		ID:          domain.NewID(),
		Name:        name,
		URL:         domain.NormalizeURL(url),
		Description: description,
	}
	l.tree[idx].Bookmarks = append(l.tree[idx].Bookmarks, bm)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return bm, true, err
}

// UpdateBookmark rewrites a bookmark's fields, normalizing the URL.
func (l *Library) UpdateBookmark(ctx context.Context, categoryID, bookmarkID, name, url, description string) (bool, error) {
	l.mu.Lock()
	ci, bi := l.bookmarkIndexLocked(categoryID, bookmarkID)
	if bi < 0 {
		l.mu.Unlock()
		return false, nil
	}
	bm := &l.tree[ci].Bookmarks[bi]
	bm.Name = name
	bm.URL = domain.NormalizeURL(url)
	bm.Description = description
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return true, err
}

// DeleteBookmark removes a bookmark from its category.
func (l *Library) DeleteBookmark(ctx context.Context, categoryID, bookmarkID string) (bool, error) {
	l.mu.Lock()
	ci, bi := l.bookmarkIndexLocked(categoryID, bookmarkID)
	if bi < 0 {
		l.mu.Unlock()
		return false, nil
	}
	bms := l.tree[ci].Bookmarks
	l.tree[ci].Bookmarks = append(bms[:bi], bms[bi+1:]...)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return true, err
}

// MoveBookmark reorders a bookmark inside its category. Out-of-range
// targets are clamped.
func (l *Library) MoveBookmark(ctx context.Context, categoryID, bookmarkID string, toIndex int) (bool, error) {
	l.mu.Lock()
	ci, bi := l.bookmarkIndexLocked(categoryID, bookmarkID)
	if bi < 0 {
		l.mu.Unlock()
		return false, nil
	}
	bms := l.tree[ci].Bookmarks
	toIndex = clamp(toIndex, 0, len(bms)-1)
	bm := bms[bi]
	bms = append(bms[:bi], bms[bi+1:]...)
	bms = append(bms[:toIndex], append([]domain.Bookmark{bm}, bms[toIndex:]...)...)
	l.tree[ci].Bookmarks = bms
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return true, err
}

// Search returns a filtered read-only view. Empty queries return the
// full tree. Never mutates state.
func (l *Library) Search(query string) domain.Tree {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.FilterTree(l.tree, query).Clone()
}

// Snapshot returns a deep copy of the current tree.
func (l *Library) Snapshot() domain.Tree {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Clone()
}

// LastChange returns the last-local-change timestamp in unix millis.
func (l *Library) LastChange() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastChange
}

// ExportSnapshot serializes the full tree in the export envelope shape.
func (l *Library) ExportSnapshot() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.MarshalSnapshot(l.tree)
}

// ImportSnapshot validates the input and replaces the whole tree on
// success. Malformed input yields a ValidationError and leaves the
// current tree untouched.
func (l *Library) ImportSnapshot(ctx context.Context, data []byte) error {
	tree, err := domain.ParseSnapshot(data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.tree = tree
	perr := l.persistLocked(ctx)
	l.mu.Unlock()

	l.notify()
	return perr
}

// ApplyRemote overwrites the local tree with a remote document and
// rewrites local persistence. The lastchange watermark advances to the
// remote timestamp so the same notification is not applied twice.
//
// Deliberately does NOT fire the change hook: a remote overwrite must
// not schedule a push of its own.
func (l *Library) ApplyRemote(ctx context.Context, tree domain.Tree, lastModified int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tree = tree.Clone()
	if lastModified > l.lastChange {
		l.lastChange = lastModified
	}

	if err := l.store.SaveDataset(ctx, l.userID, l.tree); err != nil {
		return &domain.StorageError{Op: "save dataset", Err: err}
	}
	if err := l.store.SetLastChange(ctx, l.userID, l.lastChange); err != nil {
		return &domain.StorageError{Op: "save last change", Err: err}
	}
	return nil
}

// persistLocked bumps the lastchange watermark and rewrites both keys.
// Callers hold the write lock.
func (l *Library) persistLocked(ctx context.Context) error {
	now := l.nowFn()
	if now <= l.lastChange {
		now = l.lastChange + 1
	}
	l.lastChange = now

	if err := l.store.SaveDataset(ctx, l.userID, l.tree); err != nil {
		l.logger.Error("failed to persist dataset",
			logger.String("user_id", l.userID),
			logger.Error(err))
		return &domain.StorageError{Op: "save dataset", Err: err}
	}
	if err := l.store.SetLastChange(ctx, l.userID, l.lastChange); err != nil {
		l.logger.Error("failed to persist last change",
			logger.String("user_id", l.userID),
			logger.Error(err))
		return &domain.StorageError{Op: "save last change", Err: err}
	}
	return nil
}

func (l *Library) notify() {
	l.mu.RLock()
	fn := l.onChange
	l.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (l *Library) categoryIndexLocked(id string) int {
	for i := range l.tree {
		if l.tree[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Library) bookmarkIndexLocked(categoryID, bookmarkID string) (catIdx, bmIdx int) {
	ci := l.categoryIndexLocked(categoryID)
	if ci < 0 {
		return -1, -1
	}
	for j := range l.tree[ci].Bookmarks {
		if l.tree[ci].Bookmarks[j].ID == bookmarkID {
			return ci, j
		}
	}
	return ci, -1
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
