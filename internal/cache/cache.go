package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unifinance/funding-radar/internal/models"
)

const (
	opportunitiesKey = "funding-radar:opportunities"
	defaultTTL       = 10 * time.Minute
)

// Cache stores the last published opportunity list in Redis so a restarted
// server has something to serve before its first acquisition cycle lands.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// snapshot is the stored envelope: the list plus when it was published.
type snapshot struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// New connects to Redis using a redis:// URL and verifies the connection.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{client: client, ttl: defaultTTL}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// SaveOpportunities implements ingest.SnapshotStore.
func (c *Cache) SaveOpportunities(ctx context.Context, opps []models.Opportunity, at time.Time) error {
	data, err := json.Marshal(snapshot{Opportunities: opps, UpdatedAt: at})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := c.client.Set(ctx, opportunitiesKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// LoadOpportunities implements ingest.SnapshotStore. A missing key is not
// an error; it returns an empty list.
func (c *Cache) LoadOpportunities(ctx context.Context) ([]models.Opportunity, time.Time, error) {
	data, err := c.client.Get(ctx, opportunitiesKey).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap.Opportunities, snap.UpdatedAt, nil
}
