package geo

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/example/chauffeur-dispatch/internal/models"
)

// Index is the driver position index consumed by the dispatch
// scheduler and the location handlers.
type Index interface {
	// Upsert replaces the driver's position, last write wins.
	Upsert(ctx context.Context, driverID string, lon, lat float64) error
	// Remove deletes the driver's position; removing an absent driver
	// is a no-op.
	Remove(ctx context.Context, driverID string) error
	// QueryRadius returns drivers within radiusKm of center, ascending
	// by distance. Distances are kilometers.
	QueryRadius(ctx context.Context, center models.Coord, radiusKm float64) ([]models.NearbyDriver, error)
}

var ErrInvalidCoord = errors.New("invalid coordinates")

// ValidCoord rejects non-finite and out-of-range lon/lat.
func ValidCoord(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// MemoryIndex is a naive scan index; in prod use the Redis GEO backend.
type MemoryIndex struct {
	mu      sync.RWMutex
	drivers map[string]models.Coord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{drivers: make(map[string]models.Coord)}
}

func (g *MemoryIndex) Upsert(ctx context.Context, driverID string, lon, lat float64) error {
	if !ValidCoord(lon, lat) {
		return ErrInvalidCoord
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[driverID] = models.Coord{Lon: lon, Lat: lat}
	return nil
}

func (g *MemoryIndex) Remove(ctx context.Context, driverID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.drivers, driverID)
	return nil
}

func (g *MemoryIndex) QueryRadius(ctx context.Context, center models.Coord, radiusKm float64) ([]models.NearbyDriver, error) {
	if !ValidCoord(center.Lon, center.Lat) {
		return nil, ErrInvalidCoord
	}
	g.mu.RLock()
	out := make([]models.NearbyDriver, 0)
	for id, loc := range g.drivers {
		d := Haversine(center.Lat, center.Lon, loc.Lat, loc.Lon) / 1000.0
		if d <= radiusKm {
			out = append(out, models.NearbyDriver{DriverID: id, Distance: d})
		}
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
