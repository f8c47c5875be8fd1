package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/AnTengye/contractscore/config"
)

// JobRegistry guards the one-active-job-per-contract rule.
// TryAcquire is an atomic check-and-set: exactly one concurrent caller for a
// given id gets true until Release is called.
type JobRegistry interface {
	TryAcquire(ctx context.Context, contractID string) (bool, error)
	Release(ctx context.Context, contractID string) error
	Active(ctx context.Context, contractID string) (bool, error)
}

// OpenRegistry builds the JobRegistry selected by cfg.Driver.
func OpenRegistry(ctx context.Context, cfg config.RegistryConfig) (JobRegistry, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryRegistry(), nil
	case "redis":
		return NewRedisRegistry(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL)
	}
	return nil, fmt.Errorf("unknown registry driver %q", cfg.Driver)
}

// MemoryRegistry tracks active jobs for a single process.
type MemoryRegistry struct {
	mu     sync.Mutex
	active map[string]time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{active: make(map[string]time.Time)}
}

func (r *MemoryRegistry) TryAcquire(_ context.Context, contractID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[contractID]; ok {
		return false, nil
	}
	r.active[contractID] = time.Now()
	return true, nil
}

func (r *MemoryRegistry) Release(_ context.Context, contractID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, contractID)
	return nil
}

func (r *MemoryRegistry) Active(_ context.Context, contractID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[contractID]
	return ok, nil
}

// RedisRegistry shares the guard between replicas with SET NX. The TTL
// frees the slot if a worker dies without releasing it.
type RedisRegistry struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisRegistry(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisRegistry, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisRegistry(rdb, ttl), nil
}

func newRedisRegistry(rdb *goredis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisRegistry{rdb: rdb, ttl: ttl, prefix: "contractscore:job:"}
}

func (r *RedisRegistry) key(contractID string) string {
	return r.prefix + contractID
}

func (r *RedisRegistry) TryAcquire(ctx context.Context, contractID string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.key(contractID), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *RedisRegistry) Release(ctx context.Context, contractID string) error {
	if err := r.rdb.Del(ctx, r.key(contractID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Active(ctx context.Context, contractID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(contractID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRegistry) Close() error {
	return r.rdb.Close()
}
