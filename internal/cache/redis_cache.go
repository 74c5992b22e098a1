package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"invoicecore/internal/domain"
)

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisInvoiceCache struct {
	client *redis.Client
}

func NewRedisInvoiceCache(client *redis.Client) *RedisInvoiceCache {
	return &RedisInvoiceCache{client: client}
}

func (c *RedisInvoiceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisInvoiceCache) Close() error {
	return c.client.Close()
}

func (c *RedisInvoiceCache) Get(ctx context.Context, id string) (*domain.Invoice, bool, error) {
	val, err := c.client.Get(ctx, invoiceKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var inv domain.Invoice
	if err := json.Unmarshal([]byte(val), &inv); err != nil {
		return nil, false, err
	}
	return &inv, true, nil
}

func (c *RedisInvoiceCache) Set(ctx context.Context, value *domain.Invoice, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, invoiceKey(value.ID), payload, ttl).Err()
}

func (c *RedisInvoiceCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, invoiceKey(id)).Err()
}

// RedisCounterStore keeps sequence counters under seq:<name> for deployments
// without a database. SwapCounter runs under WATCH/MULTI, so processes sharing
// one redis never advance the counter from the same value twice.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (c *RedisCounterStore) LoadCounter(ctx context.Context, name string) (int64, error) {
	val, err := c.client.Get(ctx, counterKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *RedisCounterStore) SwapCounter(ctx context.Context, name string, old int64, next int64) (bool, error) {
	key := counterKey(name)
	swapped := false
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != old {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The key changed after WATCH; another writer won.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}
