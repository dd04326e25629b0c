package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"freshdeal/geo"
	"freshdeal/models"
)

const versionKey = "restaurants:version"

// SnapshotCache stores raw proximity query results. Availability is never cached
// because it depends on the time of each request.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts Options, log *slog.Logger) (*SnapshotCache, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("connected to redis", "addr", opts.Addr, "ttl", opts.TTL)

	return &SnapshotCache{client: client, ttl: opts.TTL, log: log}, nil
}

func (c *SnapshotCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Key builds the cache key for a proximity query. Origins inside the same geohash
// cell share an entry.
func Key(version int64, origin geo.Point, radiusKm float64) string {
	return fmt.Sprintf("restaurants:v%d:near:%s:%s",
		version, geo.Cell(origin), strconv.FormatFloat(radiusKm, 'f', -1, 64))
}

func (c *SnapshotCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// GetNearby returns the cached snapshots for a proximity query together with the
// version it looked under. ok is false on a miss; the version must then be handed
// to SetNearby so a result computed before an Invalidate never lands under the
// newer version.
func (c *SnapshotCache) GetNearby(ctx context.Context, origin geo.Point, radiusKm float64) ([]models.Restaurant, int64, bool, error) {
	v, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, fmt.Errorf("cache version: %w", err)
	}

	b, err := c.client.Get(ctx, Key(v, origin, radiusKm)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, v, false, nil
	}
	if err != nil {
		return nil, v, false, fmt.Errorf("cache get: %w", err)
	}

	var rs []models.Restaurant
	if err := json.Unmarshal(b, &rs); err != nil {
		return nil, v, false, fmt.Errorf("cache decode: %w", err)
	}
	return rs, v, true, nil
}

// SetNearby stores the snapshots for a proximity query under version, which is
// the one GetNearby reported for the miss.
func (c *SnapshotCache) SetNearby(ctx context.Context, version int64, origin geo.Point, radiusKm float64, rs []models.Restaurant) error {
	b, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, Key(version, origin, radiusKm), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached proximity result by moving to a new version.
// Old entries expire on their own.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	v, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	c.log.Debug("snapshot cache invalidated", "version", v)
	return nil
}
