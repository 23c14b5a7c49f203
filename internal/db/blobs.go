package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	redis "github.com/redis/go-redis/v9"
)

// Redis как долговременное хранилище блобов (без TTL)
type RedisBlobs struct {
	client *redis.Client
}

func NewRedisBlobs(addr string, user string, pwd string) (*RedisBlobs, error) {
	if addr == "" {
		return nil, fmt.Errorf("env MEMBERSHIP_CACHE_URL is not set")
	}
	db := redis.NewClient(&redis.Options{
		Addr:        addr,
		Username:    user,
		Password:    pwd,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	err := db.Ping(context.Background()).Err()
	if err != nil {
		return nil, err
	}
	return &RedisBlobs{db}, nil
}

func NewRedisBlobsFromClient(client *redis.Client) *RedisBlobs {
	return &RedisBlobs{client}
}

func (r *RedisBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, models.ErrCacheMiss
	} else if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisBlobs) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisBlobs) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisBlobs) Close() error {
	return r.client.Close()
}

// Блобы в памяти, когда Redis не настроен
type MemoryBlobs struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{items: make(map[string][]byte)}
}

func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, models.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBlobs) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBlobs) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
