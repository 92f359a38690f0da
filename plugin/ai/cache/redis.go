package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/synapse/plugin/ai"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "synapse:emb:",
		TTL:          7 * 24 * time.Hour,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisTier stores embeddings in Redis so they survive restarts and are
// shared between processes.
type RedisTier struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ Tier = (*RedisTier)(nil)

// NewRedisTier connects to Redis and returns a tier.
func NewRedisTier(ctx context.Context, config *RedisConfig) (*RedisTier, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	slog.Info("Redis embedding tier connected", "addr", config.Addr)

	return &RedisTier{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
	}, nil
}

// NewRedisTierWithClient wraps an existing client.
func NewRedisTierWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisTier {
	return &RedisTier{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

type redisEntry struct {
	Vector       []float32 `json:"v"`
	ModelVersion string    `json:"m"`
}

func (r *RedisTier) Get(ctx context.Context, key string) (ai.TextEmbedding, bool, error) {
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ai.TextEmbedding{}, false, nil
	}
	if err != nil {
		return ai.TextEmbedding{}, false, errors.Wrap(err, "redis get")
	}

	var stored redisEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return ai.TextEmbedding{}, false, errors.Wrap(err, "decode cached embedding")
	}
	return ai.TextEmbedding{Vector: stored.Vector, ModelVersion: stored.ModelVersion}, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, emb ai.TextEmbedding) error {
	data, err := json.Marshal(redisEntry{Vector: emb.Vector, ModelVersion: emb.ModelVersion})
	if err != nil {
		return errors.Wrap(err, "encode embedding")
	}
	if err := r.client.Set(ctx, r.redisKey(key), data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisTier) Close() error {
	return r.client.Close()
}

// redisKey hashes the normalized text; raw note text never appears in key names.
func (r *RedisTier) redisKey(key string) string {
	return r.keyPrefix + KeyHash(key)
}

// KeyHash returns the hex SHA-256 of key.
func KeyHash(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
