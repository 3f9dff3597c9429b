package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/qa-forecast/backend/internal/storage/models"
	"github.com/qa-forecast/backend/pkg/logger"
)

const latestForecastKey = "forecast:latest"

// Client caches the dashboard-ready forecast snapshot so the API layer can
// serve it without hitting the warehouse.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetLatestForecast replaces the cached snapshot with the percentage-scaled
// rows of the run that just persisted.
func (c *Client) SetLatestForecast(ctx context.Context, rows []models.DashboardForecastRow, ttl time.Duration) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast snapshot: %w", err)
	}

	err = c.client.Set(ctx, latestForecastKey, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache forecast snapshot: %w", err)
	}

	logger.Debug("Forecast snapshot cached", zap.Int("rows", len(rows)), zap.Duration("ttl", ttl))
	return nil
}

// GetLatestForecast returns the cached snapshot, or found=false when the key
// is absent or expired.
func (c *Client) GetLatestForecast(ctx context.Context) ([]models.DashboardForecastRow, bool, error) {
	data, err := c.client.Get(ctx, latestForecastKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get forecast snapshot: %w", err)
	}

	var rows []models.DashboardForecastRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal forecast snapshot: %w", err)
	}
	return rows, true, nil
}
