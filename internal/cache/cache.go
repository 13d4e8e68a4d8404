package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleetbook/internal/db"
	"fleetbook/internal/interval"

	"github.com/go-redis/redis/v8"
)

// CalendarCache caches blocked-day reads per vehicle and range. Get reports the
// version it looked under; a miss is filled by passing that version back to Set, so
// rows read before an Invalidate can never land under the newer version.
type CalendarCache interface {
	Get(ctx context.Context, vehicleID string, iv interval.Interval) (days []db.BlockedDay, version int64, hit bool, err error)
	Set(ctx context.Context, vehicleID string, version int64, iv interval.Interval, days []db.BlockedDay) error
	// Invalidate drops every cached range of the vehicle.
	Invalidate(ctx context.Context, vehicleID string) error
}

// NewRedisClient connects and pings, the same way for every Redis DB we use.
func NewRedisClient(ctx context.Context, addr, password string, dbIndex int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// RedisCalendarCache versions keys per vehicle. Invalidation bumps the version so
// stale ranges are never read again and expire on their own.
type RedisCalendarCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCalendarCache(client *redis.Client, ttl time.Duration) *RedisCalendarCache {
	return &RedisCalendarCache{client: client, ttl: ttl}
}

const cacheKeyPrefix = "calendar:"

func versionKey(vehicleID string) string {
	return cacheKeyPrefix + "version:" + vehicleID
}

func rangeKey(vehicleID string, version int64, iv interval.Interval) string {
	return fmt.Sprintf("%s%s:%d:%s:%s", cacheKeyPrefix, vehicleID, version,
		iv.Start.Format(interval.DateLayout), iv.End.Format(interval.DateLayout))
}

func (c *RedisCalendarCache) version(ctx context.Context, vehicleID string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(vehicleID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *RedisCalendarCache) Get(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.BlockedDay, int64, bool, error) {
	version, err := c.version(ctx, vehicleID)
	if err != nil {
		return nil, 0, false, err
	}
	val, err := c.client.Get(ctx, rangeKey(vehicleID, version, iv)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, err
	}
	var days []db.BlockedDay
	if err := json.Unmarshal(val, &days); err != nil {
		return nil, version, false, err
	}
	return days, version, true, nil
}

// Set stores days under the version returned by the Get that missed.
func (c *RedisCalendarCache) Set(ctx context.Context, vehicleID string, version int64, iv interval.Interval, days []db.BlockedDay) error {
	data, err := json.Marshal(days)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rangeKey(vehicleID, version, iv), data, c.ttl).Err()
}

func (c *RedisCalendarCache) Invalidate(ctx context.Context, vehicleID string) error {
	return c.client.Incr(ctx, versionKey(vehicleID)).Err()
}

// NopCalendarCache never hits.
type NopCalendarCache struct{}

func (NopCalendarCache) Get(context.Context, string, interval.Interval) ([]db.BlockedDay, int64, bool, error) {
	return nil, 0, false, nil
}

func (NopCalendarCache) Set(context.Context, string, int64, interval.Interval, []db.BlockedDay) error {
	return nil
}

func (NopCalendarCache) Invalidate(context.Context, string) error { return nil }
