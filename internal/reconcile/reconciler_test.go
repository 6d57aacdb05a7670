package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/library"
	"github.com/pbataille/shelf/internal/logger"
	"github.com/pbataille/shelf/internal/store/remote"
)

// libStore is an in-memory library.Store.
type libStore struct {
	mu          sync.Mutex
	datasets    map[string]domain.Tree
	lastChanges map[string]int64
}

func newLibStore() *libStore {
	return &libStore{
		datasets:    make(map[string]domain.Tree),
		lastChanges: make(map[string]int64),
	}
}

func (s *libStore) SaveDataset(_ context.Context, userID string, tree domain.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[userID] = tree.Clone()
	return nil
}

func (s *libStore) SetLastChange(_ context.Context, userID string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastChanges[userID] = ts
	return nil
}

// fakeSub is a manually driven Subscription.
type fakeSub struct {
	ch   chan remote.Document
	once sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{ch: make(chan remote.Document, 8)}
}

func (f *fakeSub) Updates() <-chan remote.Document { return f.ch }

func (f *fakeSub) Close() error {
	f.once.Do(func() { close(f.ch) })
	return nil
}

// fakeRemote is an in-memory RemoteStore. Writes are NOT echoed back
// automatically; tests inject notifications through the subscription.
type fakeRemote struct {
	mu       sync.Mutex
	doc      *remote.Document
	sub      *fakeSub
	failSave bool
	saves    int
}

func (f *fakeRemote) Load(_ context.Context, _ string) (*remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doc == nil {
		return nil, nil
	}
	d := *f.doc
	return &d, nil
}

func (f *fakeRemote) Save(_ context.Context, _ string, doc *remote.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("remote down")
	}
	d := *doc
	f.doc = &d
	f.saves++
	return nil
}

func (f *fakeRemote) Subscribe(_ context.Context, _ string) (remote.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sub = newFakeSub()
	return f.sub, nil
}

func (f *fakeRemote) savedDoc() *remote.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc
}

func newTestReconciler(t *testing.T) (*Reconciler, *library.Library, *fakeRemote) {
	t.Helper()
	lib := library.New("user_alice", domain.Tree{}, 0, newLibStore(), logger.Nop())
	rem := &fakeRemote{}
	rec := New("user_alice", lib, rem, logger.Nop())
	return rec, lib, rem
}

func TestEnablePushesLocalTree(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	cat, _ := lib.AddCategory(ctx, "Work", "#111111")
	_, _, _ = lib.AddBookmark(ctx, cat.ID, "Go", "go.dev", "")

	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	defer rec.Disable()

	if rec.State() != Syncing {
		t.Errorf("state = %v, want Syncing", rec.State())
	}
	doc := rem.savedDoc()
	if doc == nil {
		t.Fatal("nothing pushed to remote")
	}
	if len(doc.Categories) != 1 || len(doc.Categories[0].Bookmarks) != 1 {
		t.Errorf("pushed tree = %+v", doc.Categories)
	}
	if doc.LastModified == 0 {
		t.Error("pushed document carries no lastModified")
	}
}

func TestEnableFailureStaysDisabled(t *testing.T) {
	rec, _, rem := newTestReconciler(t)
	rem.failSave = true

	err := rec.Enable(context.Background())
	if err == nil {
		t.Fatal("Enable() should have failed")
	}
	var serr *domain.SyncError
	if !errors.As(err, &serr) {
		t.Errorf("expected SyncError, got %T", err)
	}
	if rec.State() != Disabled {
		t.Errorf("state = %v, want Disabled", rec.State())
	}
}

func TestEchoSuppression(t *testing.T) {
	rec, lib, _ := newTestReconciler(t)
	ctx := context.Background()

	_, _ = lib.AddCategory(ctx, "Mine", "#111111")
	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	defer rec.Disable()

	before := lib.Snapshot()
	watermark := rec.LastSyncTime()

	// A notification at or below our own push watermark is our echo.
	rec.handleRemoteChange(ctx, remote.Document{
		Categories:   domain.Tree{{ID: "evil", Name: "Other"}},
		LastModified: watermark,
	})

	after := lib.Snapshot()
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Errorf("echo overwrote local state: %+v", after)
	}
}

func TestNewerRemoteOverwritesLocal(t *testing.T) {
	rec, lib, _ := newTestReconciler(t)
	ctx := context.Background()

	_, _ = lib.AddCategory(ctx, "Mine", "#111111")
	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	defer rec.Disable()

	var rendered domain.Tree
	var mu sync.Mutex
	rec.OnOverwrite(func(tree domain.Tree) {
		mu.Lock()
		rendered = tree
		mu.Unlock()
	})

	incoming := remote.Document{
		Categories:   domain.Tree{{ID: "theirs", Name: "Theirs", Bookmarks: []domain.Bookmark{}}},
		LastModified: lib.LastChange() + 1000,
	}
	rec.handleRemoteChange(ctx, incoming)

	got := lib.Snapshot()
	if len(got) != 1 || got[0].ID != "theirs" {
		t.Fatalf("remote tree should have overwritten local, got %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(rendered) != 1 || rendered[0].ID != "theirs" {
		t.Errorf("render notification missing or stale: %+v", rendered)
	}
}

func TestStaleRemoteDiscarded(t *testing.T) {
	rec, lib, _ := newTestReconciler(t)
	ctx := context.Background()

	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	defer rec.Disable()

	// Local edit after enabling: lastLocalChange moves past our push.
	_, _ = lib.AddCategory(ctx, "Fresh", "#111111")

	// Not our echo (above lastPush) but not newer than the local edit
	// either: local wins.
	rec.handleRemoteChange(ctx, remote.Document{
		Categories:   domain.Tree{{ID: "theirs", Name: "Theirs"}},
		LastModified: lib.LastChange(),
	})

	got := lib.Snapshot()
	if len(got) != 1 || got[0].Name != "Fresh" {
		t.Errorf("stale remote change should be discarded, got %+v", got)
	}
}

func TestListenerAppliesNotifications(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	defer rec.Disable()

	rem.sub.ch <- remote.Document{
		Categories:   domain.Tree{{ID: "theirs", Name: "Theirs", Bookmarks: []domain.Bookmark{}}},
		LastModified: lib.LastChange() + 1000,
	}

	deadline := time.After(2 * time.Second)
	for {
		got := lib.Snapshot()
		if len(got) == 1 && got[0].ID == "theirs" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("listener never applied the change, tree = %+v", lib.Snapshot())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSyncNowConflictChoice(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	_, _ = lib.AddCategory(ctx, "Mine", "#111111")
	rem.doc = &remote.Document{
		Categories:   domain.Tree{{ID: "theirs", Name: "Theirs", Bookmarks: []domain.Bookmark{}}},
		LastModified: 12345,
	}

	// First call without a resolution surfaces the conflict.
	conflict, err := rec.SyncNow(ctx, "")
	if err != nil {
		t.Fatalf("SyncNow() error: %v", err)
	}
	if conflict == nil {
		t.Fatal("expected a conflict for non-empty remote")
	}
	if len(conflict.RemoteTree) != 1 || conflict.RemoteTree[0].ID != "theirs" {
		t.Errorf("conflict remote tree = %+v", conflict.RemoteTree)
	}
	if rec.State() != Disabled {
		t.Errorf("state = %v, want Disabled while unresolved", rec.State())
	}

	// Keep local: local tree survives and the enable push overwrites remote.
	conflict, err = rec.SyncNow(ctx, KeepLocal)
	if err != nil || conflict != nil {
		t.Fatalf("SyncNow(KeepLocal) = %v, %v", conflict, err)
	}
	defer rec.Disable()
	if rec.State() != Syncing {
		t.Errorf("state = %v, want Syncing", rec.State())
	}
	if got := lib.Snapshot(); got[0].Name != "Mine" {
		t.Errorf("local tree lost: %+v", got)
	}
	if doc := rem.savedDoc(); len(doc.Categories) != 1 || doc.Categories[0].Name != "Mine" {
		t.Errorf("remote should hold local tree now: %+v", doc.Categories)
	}
}

func TestSyncNowAcceptRemote(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	_, _ = lib.AddCategory(ctx, "Mine", "#111111")
	rem.doc = &remote.Document{
		Categories:   domain.Tree{{ID: "theirs", Name: "Theirs", Bookmarks: []domain.Bookmark{}}},
		LastModified: 12345,
	}

	conflict, err := rec.SyncNow(ctx, AcceptRemote)
	if err != nil || conflict != nil {
		t.Fatalf("SyncNow(AcceptRemote) = %v, %v", conflict, err)
	}
	defer rec.Disable()

	if got := lib.Snapshot(); len(got) != 1 || got[0].ID != "theirs" {
		t.Errorf("remote tree should have replaced local: %+v", got)
	}
}

func TestSyncNowEmptyRemoteJustEnables(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	_, _ = lib.AddCategory(ctx, "Mine", "#111111")

	conflict, err := rec.SyncNow(ctx, "")
	if err != nil || conflict != nil {
		t.Fatalf("SyncNow() = %v, %v", conflict, err)
	}
	defer rec.Disable()
	if rec.State() != Syncing {
		t.Errorf("state = %v, want Syncing", rec.State())
	}
	if doc := rem.savedDoc(); doc == nil || doc.Categories[0].Name != "Mine" {
		t.Errorf("enable should have pushed the local tree")
	}
}

func TestSyncNowWhileSyncingPushes(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	defer rec.Disable()
	savesAfterEnable := rem.saves

	_, _ = lib.AddCategory(ctx, "Later", "#111111")
	if _, err := rec.SyncNow(ctx, ""); err != nil {
		t.Fatalf("SyncNow() error: %v", err)
	}
	if rem.saves != savesAfterEnable+1 {
		t.Errorf("expected one more push, saves = %d", rem.saves)
	}
	if doc := rem.savedDoc(); len(doc.Categories) != 1 || doc.Categories[0].Name != "Later" {
		t.Errorf("push did not carry the latest tree: %+v", doc.Categories)
	}
}

func TestScheduledPushFlush(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	rec.Start(ctx)
	defer rec.Stop()

	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	// The mutation path hands pushes to the worker.
	lib.OnChange(rec.SchedulePush)
	_, _ = lib.AddCategory(ctx, "Queued", "#111111")

	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	doc := rem.savedDoc()
	if len(doc.Categories) != 1 || doc.Categories[0].Name != "Queued" {
		t.Errorf("worker push did not land: %+v", doc.Categories)
	}
}

func TestBackgroundPushFailureDisablesSync(t *testing.T) {
	rec, lib, rem := newTestReconciler(t)
	ctx := context.Background()

	rec.Start(ctx)
	defer rec.Stop()

	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}

	rem.mu.Lock()
	rem.failSave = true
	rem.mu.Unlock()

	lib.OnChange(rec.SchedulePush)
	_, _ = lib.AddCategory(ctx, "Doomed", "#111111")

	_ = rec.Flush(ctx)
	if rec.State() != Disabled {
		t.Errorf("state = %v, want Disabled after failed push", rec.State())
	}
}

func TestDisableIdempotent(t *testing.T) {
	rec, _, _ := newTestReconciler(t)

	if err := rec.Enable(context.Background()); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	rec.Disable()
	rec.Disable()
	if rec.State() != Disabled {
		t.Errorf("state = %v, want Disabled", rec.State())
	}
}

func TestPushTimestampsMonotonic(t *testing.T) {
	rec, _, rem := newTestReconciler(t)
	ctx := context.Background()

	// Freeze the clock: successive pushes must still advance lastModified.
	rec.nowFn = func() int64 { return 5000 }

	if err := rec.Push(ctx); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	first := rem.savedDoc().LastModified
	if err := rec.Push(ctx); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	second := rem.savedDoc().LastModified

	if second <= first {
		t.Errorf("lastModified not increasing: %d then %d", first, second)
	}
}

// gatedRemote parks Subscribe callers until released, so a test can hold
// one Enable open across its subscribe step.
type gatedRemote struct {
	entered chan struct{}
	release chan struct{}

	mu   sync.Mutex
	subs []*fakeSub
}

func newGatedRemote() *gatedRemote {
	return &gatedRemote{
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
}

func (g *gatedRemote) Load(_ context.Context, _ string) (*remote.Document, error) {
	return nil, nil
}

func (g *gatedRemote) Save(_ context.Context, _ string, _ *remote.Document) error {
	return nil
}

func (g *gatedRemote) Subscribe(_ context.Context, _ string) (remote.Subscription, error) {
	g.entered <- struct{}{}
	<-g.release

	sub := newFakeSub()
	g.mu.Lock()
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
	return sub, nil
}

func (g *gatedRemote) subscriptions() []*fakeSub {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*fakeSub(nil), g.subs...)
}

func TestOverlappingEnableAttachesOneListener(t *testing.T) {
	lib := library.New("user_alice", domain.Tree{}, 0, newLibStore(), logger.Nop())
	rem := newGatedRemote()
	rec := New("user_alice", lib, rem, logger.Nop())
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() { firstDone <- rec.Enable(ctx) }()
	<-rem.entered // first Enable is parked inside Subscribe

	// A second Enable arriving mid-flight must not subscribe again.
	if err := rec.Enable(ctx); err != nil {
		t.Fatalf("overlapping Enable() error: %v", err)
	}

	close(rem.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if rec.State() != Syncing {
		t.Fatalf("state = %v, want Syncing", rec.State())
	}

	subs := rem.subscriptions()
	if len(subs) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(subs))
	}

	// Disable must detach that one listener: its channel is closed, so
	// no further remote document can reach the library.
	rec.Disable()
	select {
	case _, ok := <-subs[0].ch:
		if ok {
			t.Fatal("unexpected update on subscription after Disable()")
		}
	default:
		t.Fatal("subscription left open after Disable()")
	}
}
