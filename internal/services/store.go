package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"

	"trendcast-api/internal/config"
)

// Store is the shared cache tier behind the in-memory cache. Values are
// stored as JSON.
type Store interface {
	// Get decodes the entry into dst. Entries older than maxAge are reported
	// as missing.
	Get(ctx context.Context, namespace, key string, maxAge time.Duration, dst any) (bool, error)
	Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
	Clear(ctx context.Context) error
	Close() error
}

// NewStore opens the store selected by cache.store. An empty setting returns
// a nil Store.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Cache.Store {
	case "":
		return nil, nil
	case "redis":
		store, err := NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.Cache.FirestoreProject)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firestore: %w", err)
		}
		return NewFirestoreStore(client, cfg.Cache.FirestoreCollection), nil
	default:
		return nil, fmt.Errorf("unsupported cache store: %s", cfg.Cache.Store)
	}
}

const redisKeyPrefix = "trendcast:"

// RedisStore keeps entries in Redis with a native expiry.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts *redis.Options) (*RedisStore, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func redisKey(namespace, key string) string {
	return redisKeyPrefix + namespace + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string, _ time.Duration, dst any) (bool, error) {
	data, err := s.rdb.Get(ctx, redisKey(namespace, key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKey(namespace, key), data, ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// FirestoreStore keeps entries as documents, one collection per namespace.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

type firestoreEntry struct {
	Payload  string    `firestore:"payload"`
	StoredAt time.Time `firestore:"stored_at"`
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) doc(namespace, key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection + "_" + namespace).Doc(firestoreDocID(key))
}

// firestoreDocID makes key usable as a document ID.
func firestoreDocID(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

func (s *FirestoreStore) Get(ctx context.Context, namespace, key string, maxAge time.Duration, dst any) (bool, error) {
	snap, err := s.doc(namespace, key).Get(ctx)
	if snap != nil && !snap.Exists() {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		return false, err
	}
	// Check if not expired
	if time.Since(entry.StoredAt) >= maxAge {
		return false, nil
	}
	if err := json.Unmarshal([]byte(entry.Payload), dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FirestoreStore) Set(ctx context.Context, namespace, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.doc(namespace, key).Set(ctx, firestoreEntry{Payload: string(data), StoredAt: time.Now()})
	return err
}

func (s *FirestoreStore) Clear(ctx context.Context) error {
	for _, ns := range []string{pricesNamespace, forecastsNamespace} {
		docs, err := s.client.Collection(s.collection + "_" + ns).Documents(ctx).GetAll()
		if err != nil {
			return err
		}
		for _, d := range docs {
			if _, err := d.Ref.Delete(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
