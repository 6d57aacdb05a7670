package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/library"
	"github.com/pbataille/shelf/internal/logger"
	"github.com/pbataille/shelf/internal/store/remote"
)

// RemoteStore is the cloud mirror contract: get, whole-document set, and
// a change subscription that fires on every write, the caller's own
// included. *store/remote.Store satisfies it; tests use a fake.
type RemoteStore interface {
	Load(ctx context.Context, userID string) (*remote.Document, error)
	Save(ctx context.Context, userID string, doc *remote.Document) error
	Subscribe(ctx context.Context, userID string) (remote.Subscription, error)
}

// State of the reconciliation layer for one session.
type State int

const (
	// Disabled is the default after login. A failed enable attempt
	// reverts here.
	Disabled State = iota
	// Syncing means a push has succeeded at least once and the remote
	// change listener is attached.
	Syncing
)

func (s State) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "disabled"
}

// Conflict is returned by SyncNow when a non-empty remote document exists
// before sync was ever enabled. The caller must choose between keeping
// local data or accepting the remote tree; there is no partial merge.
type Conflict struct {
	RemoteTree         domain.Tree
	RemoteLastModified int64
}

// Resolution values accepted by SyncNow.
const (
	KeepLocal    = "local"
	AcceptRemote = "remote"
)

// Reconciler implements opportunistic last-writer-wins replication of one
// user's tree against a one-document-per-user remote store.
//
// It is a best-effort heuristic, reproduced deliberately: whole-document
// overwrites, a timestamp watermark for echo suppression, no vector
// clocks, no operation log, no merge. Two sessions editing inside the
// same timestamp-comparison window silently lose one edit.
type Reconciler struct {
	userID string
	lib    *library.Library
	remote RemoteStore
	logger logger.Logger

	mu           sync.Mutex
	state        State
	enabling     bool  // an Enable is between its state check and its commit
	lastPush     int64 // watermark of our own last successful push (unix millis)
	lastSyncTime int64 // last successful push or applied pull, for status display
	sub          remote.Subscription
	listenerDone chan struct{}

	// onOverwrite is the render notification: fired after a remote tree
	// has replaced local state.
	onOverwrite func(domain.Tree)

	nowFn func() int64

	pushCh     chan pushReq
	workerStop chan struct{}
	workerDone chan struct{}
}

type pushReq struct {
	done chan error // nil for fire-and-forget pushes
}

// New builds a reconciler in the Disabled state. Call Start to launch the
// background push worker and Stop on session teardown.
func New(userID string, lib *library.Library, remoteStore RemoteStore, log logger.Logger) *Reconciler {
	return &Reconciler{
		userID:     userID,
		lib:        lib,
		remote:     remoteStore,
		logger:     log,
		nowFn:      func() int64 { return time.Now().UnixMilli() },
		pushCh:     make(chan pushReq, 16),
		workerStop: make(chan struct{}),
		workerDone: make(chan struct{}),
	}
}

// OnOverwrite registers the render notification fired after a remote
// overwrite of local state.
func (r *Reconciler) OnOverwrite(fn func(domain.Tree)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOverwrite = fn
}

// Start launches the background push worker. Local mutations hand their
// pushes to it via SchedulePush so the mutation path never waits on the
// network.
func (r *Reconciler) Start(ctx context.Context) {
	go r.worker(ctx)
}

// Stop disables sync and shuts the worker down.
func (r *Reconciler) Stop() {
	r.Disable()
	close(r.workerStop)
	<-r.workerDone
}

// State returns the current reconciliation state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastSyncTime returns the unix-millis timestamp of the last successful
// push or applied pull, or 0 when never synced.
func (r *Reconciler) LastSyncTime() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSyncTime
}

// Enable transitions Disabled -> Syncing: one push of the full local
// tree, then the remote change listener attaches. On any failure the
// state stays Disabled and the error is returned. The enabling flag
// keeps overlapping calls from attaching a second listener: while one
// Enable is between its state check and its commit, the others return
// as if sync were already on.
func (r *Reconciler) Enable(ctx context.Context) error {
	r.mu.Lock()
	if r.state == Syncing || r.enabling {
		r.mu.Unlock()
		return nil
	}
	r.enabling = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.enabling = false
		r.mu.Unlock()
	}()

	if r.remote == nil {
		return &domain.SyncError{Op: "enable", Err: errNoRemote}
	}

	if err := r.Push(ctx); err != nil {
		return err
	}

	sub, err := r.remote.Subscribe(ctx, r.userID)
	if err != nil {
		return &domain.SyncError{Op: "subscribe", Err: err}
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.state = Syncing
	r.sub = sub
	r.listenerDone = done
	r.mu.Unlock()

	go r.listen(ctx, sub, done)

	r.logger.Info("cloud sync enabled", logger.String("user_id", r.userID))
	return nil
}

// Push serializes the entire local tree plus a lastModified timestamp and
// overwrites the remote document. No merge, no diffing. On success the
// timestamp becomes the echo-suppression watermark.
func (r *Reconciler) Push(ctx context.Context) error {
	if r.remote == nil {
		return &domain.SyncError{Op: "push", Err: errNoRemote}
	}

	r.mu.Lock()
	now := r.nowFn()
	if now <= r.lastPush {
		now = r.lastPush + 1
	}
	r.mu.Unlock()

	doc := &remote.Document{
		Categories:   r.lib.Snapshot(),
		LastModified: now,
	}

	if err := r.remote.Save(ctx, r.userID, doc); err != nil {
		return &domain.SyncError{Op: "push", Err: err}
	}

	r.mu.Lock()
	if doc.LastModified > r.lastPush {
		r.lastPush = doc.LastModified
	}
	r.lastSyncTime = doc.LastModified
	r.mu.Unlock()

	r.logger.Debug("pushed tree to remote",
		logger.String("user_id", r.userID),
		logger.Int64("last_modified", doc.LastModified))
	return nil
}

// Pull fetches the remote document, or nil when none exists yet.
func (r *Reconciler) Pull(ctx context.Context) (*remote.Document, error) {
	if r.remote == nil {
		return nil, &domain.SyncError{Op: "pull", Err: errNoRemote}
	}
	doc, err := r.remote.Load(ctx, r.userID)
	if err != nil {
		return nil, &domain.SyncError{Op: "pull", Err: err}
	}
	return doc, nil
}

// SyncNow drives a manual sync. When already Syncing it performs one
// push. When Disabled it pulls first: a non-empty remote document with no
// resolution given is returned as a Conflict for the caller to settle
// (KeepLocal or AcceptRemote), after which sync is enabled.
func (r *Reconciler) SyncNow(ctx context.Context, resolution string) (*Conflict, error) {
	if r.State() == Syncing {
		return nil, r.Push(ctx)
	}

	doc, err := r.Pull(ctx)
	if err != nil {
		return nil, err
	}

	if doc != nil && len(doc.Categories) > 0 {
		switch resolution {
		case KeepLocal:
			// Local wins: the enable push below overwrites the remote.
		case AcceptRemote:
			if err := r.applyRemote(ctx, doc); err != nil {
				return nil, err
			}
		default:
			return &Conflict{
				RemoteTree:         doc.Categories,
				RemoteLastModified: doc.LastModified,
			}, nil
		}
	}

	return nil, r.Enable(ctx)
}

// Disable detaches the remote change listener. Idempotent.
func (r *Reconciler) Disable() {
	r.mu.Lock()
	sub := r.sub
	done := r.listenerDone
	r.sub = nil
	r.listenerDone = nil
	wasSyncing := r.state == Syncing
	r.state = Disabled
	r.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	if done != nil {
		<-done
	}
	if wasSyncing {
		r.logger.Info("cloud sync disabled", logger.String("user_id", r.userID))
	}
}

// SchedulePush queues an asynchronous push of the current tree. Dropped
// silently when sync is disabled, and coalesced into the queue when it
// is already full: every push carries the whole tree, so a pending one
// covers later mutations too.
func (r *Reconciler) SchedulePush() {
	if r.State() != Syncing {
		return
	}
	select {
	case r.pushCh <- pushReq{}:
	default:
	}
}

// Flush waits until every push queued so far has been attempted. Used by
// callers (and tests) that need to observe outstanding pushes.
func (r *Reconciler) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	select {
	case r.pushCh <- pushReq{done: done}:
	case <-r.workerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) worker(ctx context.Context) {
	defer close(r.workerDone)
	for {
		select {
		case <-r.workerStop:
			return
		case <-ctx.Done():
			return
		case req := <-r.pushCh:
			var err error
			if r.State() == Syncing {
				if err = r.Push(ctx); err != nil {
					// A failed push reverts the layer to Disabled; the
					// session survives and sync can be re-enabled.
					r.logger.Warn("background push failed, disabling sync",
						logger.String("user_id", r.userID),
						logger.Error(err))
					r.Disable()
				}
			}
			if req.done != nil {
				req.done <- err
			}
		}
	}
}

func (r *Reconciler) listen(ctx context.Context, sub remote.Subscription, done chan struct{}) {
	defer close(done)
	for doc := range sub.Updates() {
		r.handleRemoteChange(ctx, doc)
	}
}

// handleRemoteChange applies the last-writer-wins decision to one
// incoming notification:
//
//   - lastModified <= our own last push: an echo of this session's write,
//     discarded.
//   - lastModified > lastLocalChange: the remote tree unconditionally
//     overwrites local state, persistence is rewritten, the render
//     notification fires.
//   - otherwise: discarded, local edits are authoritative.
func (r *Reconciler) handleRemoteChange(ctx context.Context, doc remote.Document) {
	r.mu.Lock()
	lastPush := r.lastPush
	r.mu.Unlock()

	if doc.LastModified <= lastPush {
		r.logger.Debug("discarding own-write echo",
			logger.String("user_id", r.userID),
			logger.Int64("last_modified", doc.LastModified))
		return
	}

	if doc.LastModified <= r.lib.LastChange() {
		r.logger.Debug("discarding stale remote change",
			logger.String("user_id", r.userID),
			logger.Int64("last_modified", doc.LastModified),
			logger.Int64("last_local_change", r.lib.LastChange()))
		return
	}

	if err := r.applyRemote(ctx, &doc); err != nil {
		r.logger.Error("failed to apply remote change",
			logger.String("user_id", r.userID),
			logger.Error(err))
	}
}

func (r *Reconciler) applyRemote(ctx context.Context, doc *remote.Document) error {
	if err := r.lib.ApplyRemote(ctx, doc.Categories, doc.LastModified); err != nil {
		return err
	}

	r.mu.Lock()
	r.lastSyncTime = doc.LastModified
	fn := r.onOverwrite
	r.mu.Unlock()

	r.logger.Info("remote tree overwrote local state",
		logger.String("user_id", r.userID),
		logger.Int64("last_modified", doc.LastModified))

	if fn != nil {
		fn(r.lib.Snapshot())
	}
	return nil
}

var errNoRemote = &noRemoteError{}

type noRemoteError struct{}

func (*noRemoteError) Error() string { return "remote document store not configured" }
