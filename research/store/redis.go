package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/research"
)

const defaultRedisPrefix = "deepresearch:session:"

// Redis stores session snapshots as JSON values in Redis, with an ID set
// for listing. Keys optionally expire after TTL; IDs of expired sessions
// are pruned from the set lazily on Load.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis connection and keyspace configuration.
type RedisConfig struct {
	Addr     string        // server address, e.g. "localhost:6379"
	Password string        // optional
	DB       int           // database number
	Prefix   string        // key prefix for namespacing
	TTL      time.Duration // snapshot expiry, 0 keeps snapshots forever
}

// NewRedis returns a Redis-backed session store. A nil config selects
// localhost defaults.
func NewRedis(config *RedisConfig) *Redis {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: defaultRedisPrefix,
		}
	}
	if config.Prefix == "" {
		config.Prefix = defaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &Redis{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

func (s *Redis) key(id string) string {
	return s.prefix + id
}

func (s *Redis) setKey() string {
	return s.prefix + "ids"
}

// Save stores a snapshot of the session, replacing any previous one.
func (s *Redis) Save(ctx context.Context, session *research.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session must have an ID", errs.ErrInvalidInput)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	if err := s.client.SAdd(ctx, s.setKey(), session.ID).Err(); err != nil {
		return fmt.Errorf("failed to index session ID: %w", err)
	}
	return nil
}

// Load returns the stored session.
func (s *Redis) Load(ctx context.Context, id string) (*research.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired or never stored; drop the stale index entry.
			s.client.SRem(ctx, s.setKey(), id)
			return nil, fmt.Errorf("session %s: %w", id, errs.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session research.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// List returns the indexed session IDs. IDs whose snapshots have expired
// may still appear until their next Load.
func (s *Redis) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Delete removes a stored session. Deleting an unknown ID is not an error.
func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.client.SRem(ctx, s.setKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to unindex session ID: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	return s.client.Close()
}
