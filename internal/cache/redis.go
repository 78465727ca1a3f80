package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), flightsTTL)
}

func NewRedisCacheWithClient(client *redis.Client, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, flightsTTL: flightsTTL}
}

// GetFlights returns nil, nil on a miss.
func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	var flights []domain.Flight
	ok, err := c.getJSON(ctx, flightsKey(), &flights)
	if err != nil || !ok {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	return c.setJSON(ctx, flightsKey(), flights)
}

// GetFares returns the unfiltered fare list of a flight, nil, nil on a miss.
func (c *RedisCache) GetFares(ctx context.Context, flightID int64) ([]domain.Fare, error) {
	var fares []domain.Fare
	ok, err := c.getJSON(ctx, faresKey(flightID), &fares)
	if err != nil || !ok {
		return nil, err
	}
	return fares, nil
}

func (c *RedisCache) SetFares(ctx context.Context, flightID int64, fares []domain.Fare) error {
	return c.setJSON(ctx, faresKey(flightID), fares)
}

// InvalidateFlights drops the flight list and the flight's fares after a seat count change.
func (c *RedisCache) InvalidateFlights(ctx context.Context, flightID int64) error {
	return c.client.Del(ctx, flightsKey(), faresKey(flightID)).Err()
}

// AcquireLock takes a best-effort lease. It coordinates work, it does not guard correctness.
func (c *RedisCache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, lockKey(name), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseLock(ctx context.Context, name string) error {
	return c.client.Del(ctx, lockKey(name)).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.flightsTTL).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func faresKey(flightID int64) string {
	return fmt.Sprintf("cache:flight:%d:fares", flightID)
}

func lockKey(name string) string {
	return "lock:" + name
}
