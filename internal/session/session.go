package session

import (
	"context"
	"sync"
	"time"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/library"
	"github.com/pbataille/shelf/internal/logger"
	"github.com/pbataille/shelf/internal/reconcile"
)

// Store is the slice of local persistence the session manager needs.
type Store interface {
	library.Store
	GetDataset(ctx context.Context, userID string) (domain.Tree, bool, error)
	GetLastChange(ctx context.Context, userID string) (int64, error)
	GetSession(ctx context.Context, token string) (string, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Session is the per-login unit of state: the user's in-memory tree and
// their reconciliation layer. Constructed on login/register, torn down
// on logout. Replaces the ambient globals of the original design.
type Session struct {
	Token     string
	UserID    string
	Username  string
	Library   *library.Library
	Sync      *reconcile.Reconciler
	CreatedAt time.Time
}

// Manager tracks live sessions by token and rebuilds them from the
// persisted session marker after a process restart.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store  Store
	remote reconcile.RemoteStore // nil when no remote endpoint is configured
	seed   func() domain.Tree
	logger logger.Logger
}

func NewManager(store Store, remoteStore reconcile.RemoteStore, seed func() domain.Tree, log logger.Logger) *Manager {
	if seed == nil {
		seed = domain.DefaultTree
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		remote:   remoteStore,
		seed:     seed,
		logger:   log,
	}
}

// Open builds the runtime session for an authenticated token: loads the
// user's dataset (seeding a starter tree for first-timers), wires the
// mutation hook to the background push worker, and starts it.
func (m *Manager) Open(ctx context.Context, token, userID, username string) (*Session, error) {
	tree, found, err := m.store.GetDataset(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get dataset", Err: err}
	}
	if !found {
		tree = m.seed()
		if err := m.store.SaveDataset(ctx, userID, tree); err != nil {
			return nil, &domain.StorageError{Op: "save dataset", Err: err}
		}
		m.logger.Info("seeded starter tree for new user",
			logger.String("user_id", userID),
			logger.Int("categories", len(tree)))
	}

	lastChange, err := m.store.GetLastChange(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get last change", Err: err}
	}

	lib := library.New(userID, tree, lastChange, m.store, m.logger)
	rec := reconcile.New(userID, lib, m.remote, m.logger)
	lib.OnChange(rec.SchedulePush)
	rec.Start(context.Background())

	sess := &Session{
		Token:     token,
		UserID:    userID,
		Username:  username,
		Library:   lib,
		Sync:      rec,
		CreatedAt: time.Now(),
	}

	// Two concurrent resolves of the same token both reach here; the
	// first to commit wins and the loser's reconciler is torn down
	// before it leaks.
	m.mu.Lock()
	if existing, ok := m.sessions[token]; ok {
		m.mu.Unlock()
		rec.Stop()
		return existing, nil
	}
	m.sessions[token] = sess
	m.mu.Unlock()

	return sess, nil
}

// Resolve returns the live session for a token, rehydrating it from the
// persisted session marker when the process has restarted since login.
// Unknown tokens yield AuthError.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrInvalidCredentials
	}

	m.mu.RLock()
	sess, ok := m.sessions[token]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	userID, err := m.store.GetSession(ctx, token)
	if err != nil {
		return nil, &domain.StorageError{Op: "get session", Err: err}
	}
	if userID == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	return m.Open(ctx, token, userID, user.Username)
}

// Close tears a session down: sync worker stopped, listener detached,
// session dropped. The session marker in the store is the identity
// service's to delete.
func (m *Manager) Close(token string) {
	m.mu.Lock()
	sess, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if ok {
		sess.Sync.Stop()
		m.logger.Info("session closed", logger.String("user_id", sess.UserID))
	}
}

// Shutdown closes every live session. Called on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Sync.Stop()
	}
}
