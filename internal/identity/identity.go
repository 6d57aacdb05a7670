package identity

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/logger"
)

// Store is the slice of local persistence the identity service needs.
// *store/redis.Store satisfies it; tests use an in-memory fake.
type Store interface {
	SaveUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	SaveSession(ctx context.Context, token, userID string) error
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

// Session is what a successful register or login hands back.
type Session struct {
	Token    string
	UserID   string
	Username string
}

// Service implements credential handling and session markers.
type Service struct {
	store  Store
	logger logger.Logger
}

func New(store Store, log logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
	}
}

const (
	minUsernameLen = 3
	minPasswordLen = 4
)

// Register creates a user record keyed by the derived userID and
// establishes a session. Fails with ValidationError on short or empty
// input, ConflictError when the derived ID is already taken.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	userID := domain.DeriveUserID(username)

	existing, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}
	if existing != nil {
		return nil, domain.NewConflictError("username %q is already registered", username)
	}

	user := &domain.User{
		ID:           userID,
		Username:     username,
		PasswordHash: domain.HashPassword(password),
		CreatedAt:    time.Now(),
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, &domain.StorageError{Op: "save user", Err: err}
	}

	s.logger.Info("user registered", logger.String("user_id", userID))
	return s.openSession(ctx, user)
}

// Login verifies credentials and establishes a session. Unknown user and
// wrong password both return the same AuthError.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	userID := domain.DeriveUserID(strings.TrimSpace(username))

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}
	if user == nil || !digestMatches(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	s.logger.Info("user logged in", logger.String("user_id", userID))
	return s.openSession(ctx, user)
}

// Logout clears the session marker only. The user record and dataset are
// retained so a future login by the same username reattaches to them.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return &domain.StorageError{Op: "delete session", Err: err}
	}
	return nil
}

// IsLoggedIn reports whether a session marker is present and resolvable.
func (s *Service) IsLoggedIn(ctx context.Context, token string) bool {
	userID, err := s.store.GetSession(ctx, token)
	return err == nil && userID != ""
}

// CurrentUser resolves a session token to its user. Returns AuthError
// when the token is unknown or the record is gone.
func (s *Service) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.store.GetSession(ctx, token)
	if err != nil {
		return nil, &domain.StorageError{Op: "get session", Err: err}
	}
	if userID == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) openSession(ctx context.Context, user *domain.User) (*Session, error) {
	token := uuid.NewString()
	if err := s.store.SaveSession(ctx, token, user.ID); err != nil {
		return nil, &domain.StorageError{Op: "save session", Err: err}
	}
	return &Session{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
	}, nil
}

func validateCredentials(username, password string) error {
	if username == "" || password == "" {
		return domain.NewValidationError("username and password are required")
	}
	if utf8.RuneCountInString(username) < minUsernameLen {
		return domain.NewValidationError("username must be at least %d characters", minUsernameLen)
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return domain.NewValidationError("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func digestMatches(stored, password string) bool {
	digest := domain.HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) == 1
}
