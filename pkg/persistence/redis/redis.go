package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/left-curve/dango-sdk-go/pkg/persistence"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixSession     = "dango:session:"
	keySchemaVersion     = "dango:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so IDs are tracked in a set.
	keySetSessions = "dango:sessions:index"
)

// RedisSessionStore is an ISessionStore shared between processes through a
// Redis server.
type RedisSessionStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.ISessionStore = (*RedisSessionStore)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string `json:"address" yaml:"address"`
	// Password is the optional Redis password
	Password string `json:"password" yaml:"password"`
	// DB is the Redis database number (0-15)
	DB int `json:"db" yaml:"db"`
	// KeyPrefix is prepended to every key, e.g. "wallet1:" gives
	// "wallet1:dango:session:<id>".
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

func NewRedisSessionStore(cfg *RedisConfig, logger *zap.Logger) (*RedisSessionStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisSessionStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis session store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rs, nil
}

func (r *RedisSessionStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisSessionStore) sessionKey(id string) string {
	return r.prefixKey(keyPrefixSession + id)
}

func (r *RedisSessionStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// SaveSession stores the record and sets a TTL matching its expiry, so
// Redis drops stale sessions on its own.
func (r *RedisSessionStore) SaveSession(session *persistence.SessionRecord) error {
	if session == nil {
		return fmt.Errorf("cannot save nil SessionRecord")
	}
	if session.ID == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("session store is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalSessionRecord(session)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if remaining := time.Until(session.Info.ExpireAt.Time()); remaining > 0 {
		ttl = remaining
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.sessionKey(session.ID), data, ttl)
	pipe.SAdd(ctx, r.prefixKey(keySetSessions), session.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save SessionRecord: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) LoadSession(id string) (*persistence.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("session store is closed")
	}

	data, err := r.client.Get(context.Background(), r.sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load SessionRecord: %w", err)
	}

	return persistence.UnmarshalSessionRecord(data)
}

func (r *RedisSessionStore) ListSessions() ([]*persistence.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("session store is closed")
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetSessions)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}
	if len(ids) == 0 {
		return []*persistence.SessionRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SessionRecords: %w", err)
	}

	sessions := make([]*persistence.SessionRecord, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Expired by TTL or deleted elsewhere; clean up the index.
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for SessionRecord", "key", keys[i])
			continue
		}

		session, err := persistence.UnmarshalSessionRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal SessionRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}
		sessions = append(sessions, session)
	}

	persistence.SortSessions(sessions)
	return sessions, nil
}

func (r *RedisSessionStore) DeleteSession(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("session store is closed")
	}

	ctx := context.Background()
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.sessionKey(id))
	pipe.SRem(ctx, r.prefixKey(keySetSessions), id)

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisSessionStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis session store closed")
	return nil
}

func (r *RedisSessionStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("session store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
