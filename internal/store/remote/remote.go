package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/logger"
)

const (
	// KeyPrefixDocument is the prefix for remote document keys
	KeyPrefixDocument = "shelf:remote:doc:"
	// ChannelPrefix is the prefix for per-user change channels
	ChannelPrefix = "shelf:remote:changes:"
)

// Document is the one-per-user remote document: the whole category tree
// plus the writer's timestamp. Writes are whole-document overwrites.
type Document struct {
	Categories   domain.Tree `json:"categories"`
	LastModified int64       `json:"lastModified"` // unix milliseconds
}

// DocumentKey returns the key holding a user's remote document.
func DocumentKey(userID string) string {
	return KeyPrefixDocument + userID
}

// ChangeChannel returns the pub/sub channel carrying a user's document
// writes. Every write is published, including the subscriber's own.
func ChangeChannel(userID string) string {
	return ChannelPrefix + userID
}

// Subscription delivers remote document changes until closed.
type Subscription interface {
	// Updates yields one Document per observed write. The channel is
	// closed when the subscription is.
	Updates() <-chan Document
	Close() error
}

// Store is the cloud mirror: get, whole-document set, and per-user
// change subscription over a Redis endpoint.
type Store struct {
	client *redis.Client
	logger logger.Logger
}

// NewStore creates a remote document store.
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		logger: log,
	}
}

// Load fetches a user's remote document. Returns (nil, nil) when no
// document exists yet.
func (s *Store) Load(ctx context.Context, userID string) (*Document, error) {
	data, err := s.client.Get(ctx, DocumentKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get remote document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal remote document: %w", err)
	}
	return &doc, nil
}

// Save overwrites a user's remote document and publishes the write on
// the user's change channel. No merge, no diffing.
func (s *Store) Save(ctx context.Context, userID string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal remote document: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, DocumentKey(userID), data, 0)
	pipe.Publish(ctx, ChangeChannel(userID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save remote document: %w", err)
	}
	return nil
}

// Subscribe attaches to a user's change channel. Notifications arrive
// for every write to the document, the subscriber's own included.
func (s *Store) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, ChangeChannel(userID))

	// Confirm the subscription before handing it out.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to remote changes: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan Document, 8),
	}
	go sub.pump(s.logger)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan Document
}

func (r *redisSubscription) pump(log logger.Logger) {
	defer close(r.out)
	for msg := range r.pubsub.Channel() {
		var doc Document
		if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
			log.Warn("dropping malformed remote change payload", logger.Error(err))
			continue
		}
		r.out <- doc
	}
}

func (r *redisSubscription) Updates() <-chan Document { return r.out }

func (r *redisSubscription) Close() error { return r.pubsub.Close() }
