package prefs

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/example/chauffeur-dispatch/internal/models"
)

// Service is the driver-settings collaborator consumed by the
// dispatch scheduler. An unknown driver gets zero-value preferences,
// which means no limits.
type Service interface {
	Preferences(ctx context.Context, driverID string) (models.DriverPreferences, error)
}

// MemoryService is a map-backed Service for tests and single-node runs.
type MemoryService struct {
	mu      sync.RWMutex
	drivers map[string]models.DriverPreferences
}

func NewMemoryService() *MemoryService {
	return &MemoryService{drivers: make(map[string]models.DriverPreferences)}
}

func (m *MemoryService) Set(driverID string, p models.DriverPreferences) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driverID] = p
}

func (m *MemoryService) Preferences(ctx context.Context, driverID string) (models.DriverPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[driverID], nil
}

// RedisService reads preferences from the per-driver settings hash
// maintained by the driver profile service.
type RedisService struct {
	client *redis.Client
	prefix string
}

func NewRedisService(client *redis.Client, prefix string) *RedisService {
	return &RedisService{client: client, prefix: prefix}
}

func (r *RedisService) Preferences(ctx context.Context, driverID string) (models.DriverPreferences, error) {
	var p models.DriverPreferences
	m, err := r.client.HGetAll(ctx, r.prefix+driverID).Result()
	if err != nil {
		return p, err
	}
	if v, ok := m["accept_distance"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.AcceptDistance = f
		}
	}
	if v, ok := m["order_distance"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.OrderDistance = f
		}
	}
	return p, nil
}
