package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pbataille/shelf/internal/domain"
)

// Store is the local persistence layer: whole-value JSON blobs addressed
// by userID-derived keys. Reads and writes are whole-value only, there
// are no partial updates.
type Store struct {
	client     *redis.Client
	sessionTTL time.Duration
}

// NewStore creates a new Redis store. sessionTTL bounds how long an idle
// session marker survives; user records and datasets never expire.
func NewStore(client *redis.Client, sessionTTL time.Duration) *Store {
	return &Store{
		client:     client,
		sessionTTL: sessionTTL,
	}
}

// Ping reports whether the backing Redis instance is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &domain.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// SaveUser stores a user record keyed by its derived ID.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := s.client.Set(ctx, UserKey(user.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser retrieves a user record. Returns (nil, nil) when no record
// exists for the given ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	data, err := s.client.Get(ctx, UserKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

// SaveDataset rewrites a user's whole tree as one JSON blob.
func (s *Store) SaveDataset(ctx context.Context, userID string, tree domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	if err := s.client.Set(ctx, DatasetKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

// GetDataset retrieves a user's tree. The second return value is false
// when no dataset exists yet.
func (s *Store) GetDataset(ctx context.Context, userID string) (domain.Tree, bool, error) {
	data, err := s.client.Get(ctx, DatasetKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get dataset: %w", err)
	}

	var tree domain.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	return tree, true, nil
}

// SetLastChange records a user's last-local-change timestamp (unix millis).
func (s *Store) SetLastChange(ctx context.Context, userID string, unixMillis int64) error {
	if err := s.client.Set(ctx, LastChangeKey(userID), unixMillis, 0).Err(); err != nil {
		return fmt.Errorf("failed to save last change: %w", err)
	}
	return nil
}

// GetLastChange returns a user's last-local-change timestamp, or 0 when
// never recorded.
func (s *Store) GetLastChange(ctx context.Context, userID string) (int64, error) {
	val, err := s.client.Get(ctx, LastChangeKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last change: %w", err)
	}

	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid last change value %q: %w", val, err)
	}
	return ts, nil
}

// SaveSession stores a session marker pointing a token at a userID.
func (s *Store) SaveSession(ctx context.Context, token, userID string) error {
	if err := s.client.Set(ctx, SessionKey(token), userID, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession resolves a session token to its userID, or "" when the
// token is unknown or expired.
func (s *Store) GetSession(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, SessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return userID, nil
}

// DeleteSession clears a session marker. The user record and dataset are
// retained so a later login reattaches to the same data.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, SessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
