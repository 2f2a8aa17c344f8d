package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const geoKeyPrefix = "geo:country:"

// GeoCache keeps IP to country lookups for a fixed TTL.
type GeoCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewGeoCache(client goredis.Cmdable, ttl time.Duration) *GeoCache {
	return &GeoCache{client: client, ttl: ttl}
}

func geoKey(ip string) string {
	return geoKeyPrefix + ip
}

func (c *GeoCache) Get(ctx context.Context, ip string) (string, bool, error) {
	country, err := c.client.Get(ctx, geoKey(ip)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return country, true, nil
}

func (c *GeoCache) Set(ctx context.Context, ip, country string) error {
	return c.client.Set(ctx, geoKey(ip), country, c.ttl).Err()
}
