package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/logger"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	users    map[string]*domain.User
	sessions map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*domain.User),
		sessions: make(map[string]string),
	}
}

func (m *memStore) SaveUser(_ context.Context, user *domain.User) error {
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *memStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (m *memStore) SaveSession(_ context.Context, token, userID string) error {
	m.sessions[token] = userID
	return nil
}

func (m *memStore) GetSession(_ context.Context, token string) (string, error) {
	return m.sessions[token], nil
}

func (m *memStore) DeleteSession(_ context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return New(store, logger.Nop()), store
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "username too short", username: "ab", password: "pw1234"},
		{name: "multibyte username too short", username: "日本", password: "pw1234"},
		{name: "password too short", username: "abc", password: "p"},
		{name: "multibyte password too short", username: "abc", password: "日本語"},
		{name: "empty username", username: "", password: "pw1234"},
		{name: "empty password", username: "abc", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			if err == nil {
				t.Fatalf("Register(%q, %q) should have failed", tt.username, tt.password)
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestRegisterMultibyteUsername(t *testing.T) {
	svc, _ := newTestService()

	// Three runes clear the three-character minimum regardless of byte
	// length.
	sess, err := svc.Register(context.Background(), "日本語", "pass")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if sess.Username != "日本語" {
		t.Errorf("Username = %q", sess.Username)
	}
}

func TestRegisterConflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password"); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}

	_, err := svc.Register(ctx, "alice", "otherpassword")
	if err == nil {
		t.Fatal("second Register() should have failed")
	}
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConflictError, got %T: %v", err, err)
	}
}

// Two display names deriving the same ID collide. Accepted ambiguity, so
// the second registration must see a conflict rather than clobber.
func TestRegisterDerivedIDCollision(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a.b.c", "password"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	_, err := svc.Register(ctx, "a_b_c", "password")
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConflictError for colliding derived ID, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice", "password")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	sess, err := svc.Login(ctx, "alice", "password")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if sess.UserID != reg.UserID {
		t.Errorf("Login() userID = %q, want %q", sess.UserID, reg.UserID)
	}
	if sess.Token == reg.Token {
		t.Error("login should issue a fresh token")
	}

	// Usernames are case-insensitive for identification.
	if _, err := svc.Login(ctx, "ALICE", "password"); err != nil {
		t.Errorf("Login() with different case error: %v", err)
	}
}

func TestLoginNoEnumeration(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	_, wrongPw := svc.Login(ctx, "alice", "nope")
	_, noUser := svc.Login(ctx, "nobody", "password")

	if wrongPw == nil || noUser == nil {
		t.Fatal("both logins should have failed")
	}
	var a1, a2 *domain.AuthError
	if !errors.As(wrongPw, &a1) || !errors.As(noUser, &a2) {
		t.Fatalf("expected AuthError for both, got %T / %T", wrongPw, noUser)
	}
	if wrongPw.Error() != noUser.Error() {
		t.Errorf("error messages differ: %q vs %q", wrongPw.Error(), noUser.Error())
	}
}

func TestLogoutKeepsUserRecord(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	sess, err := svc.Register(ctx, "alice", "password")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if !svc.IsLoggedIn(ctx, sess.Token) {
		t.Fatal("IsLoggedIn() should be true after register")
	}

	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if svc.IsLoggedIn(ctx, sess.Token) {
		t.Error("IsLoggedIn() should be false after logout")
	}
	if store.users[sess.UserID] == nil {
		t.Error("user record should survive logout")
	}

	// Same username reattaches to the same dataset key.
	again, err := svc.Login(ctx, "alice", "password")
	if err != nil {
		t.Fatalf("Login() after logout error: %v", err)
	}
	if again.UserID != sess.UserID {
		t.Errorf("login after logout userID = %q, want %q", again.UserID, sess.UserID)
	}
}

func TestCurrentUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, err := svc.Register(ctx, "alice", "password")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	user, err := svc.CurrentUser(ctx, sess.Token)
	if err != nil {
		t.Fatalf("CurrentUser() error: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("CurrentUser() username = %q, want %q", user.Username, "alice")
	}

	if _, err := svc.CurrentUser(ctx, "bogus-token"); err == nil {
		t.Error("CurrentUser() with unknown token should fail")
	}
}

func TestPasswordNotStoredInClear(t *testing.T) {
	svc, store := newTestService()

	sess, err := svc.Register(context.Background(), "alice", "password")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	user := store.users[sess.UserID]
	if user.PasswordHash == "password" {
		t.Error("password stored in clear")
	}
	if user.PasswordHash != domain.HashPassword("password") {
		t.Error("stored digest does not match HashPassword output")
	}
}
