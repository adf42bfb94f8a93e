package geo

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/example/chauffeur-dispatch/internal/models"
)

// RedisIndex implements Index using Redis GEO commands. All driver
// positions live under a single sorted-set key.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: client, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, driverID string, lon, lat float64) error {
	if !ValidCoord(lon, lat) {
		return ErrInvalidCoord
	}
	return r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lon,
		Latitude:  lat,
	}).Err()
}

func (r *RedisIndex) Remove(ctx context.Context, driverID string) error {
	// GEO members are plain sorted-set members underneath.
	return r.client.ZRem(ctx, r.key, driverID).Err()
}

func (r *RedisIndex) QueryRadius(ctx context.Context, center models.Coord, radiusKm float64) ([]models.NearbyDriver, error) {
	if !ValidCoord(center.Lon, center.Lat) {
		return nil, ErrInvalidCoord
	}
	res, err := r.client.GeoRadius(ctx, r.key, center.Lon, center.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.NearbyDriver, 0, len(res))
	for _, g := range res {
		out = append(out, models.NearbyDriver{DriverID: g.Name, Distance: g.Dist})
	}
	return out, nil
}
