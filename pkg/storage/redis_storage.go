package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const defaultRedisTimeout = 5 * time.Second

type RedisStorageConfiguration struct {
	URL     string
	Prefix  string
	Timeout time.Duration
}

// RedisStorage keeps each key as a JSON string under Prefix.
type RedisStorage struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *log.Entry
}

func NewRedisStorage(ctx context.Context, cfg RedisStorageConfiguration, logger *log.Entry) (*RedisStorage, error) {
	if cfg.URL == "" {
		return nil, errors.New("no redis url set")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis is not reachable: %w", err)
	}

	return &RedisStorage{
		client:  client,
		prefix:  cfg.Prefix,
		timeout: cfg.Timeout,
		logger:  logger.WithField("component", "redis-storage"),
	}, nil
}

func (r *RedisStorage) redisKey(key Key) string {
	return r.prefix + string(key)
}

func (r *RedisStorage) SetDictionary(key Key, value map[string]interface{}) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("unable to marshal %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.redisKey(key), b, 0).Err(); err != nil {
		return fmt.Errorf("unable to write %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) GetDictionary(key Key) (map[string]interface{}, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	b, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Errorf("unable to read %s: %v", key, err)
		}
		return nil, false
	}
	return decodeDictionary(b)
}

func (r *RedisStorage) Remove(key Key) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("unable to remove %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Reset() error {
	keys := make([]string, 0, len(Keys))
	for _, key := range Keys {
		keys = append(keys, r.redisKey(key))
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("unable to reset storage: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
