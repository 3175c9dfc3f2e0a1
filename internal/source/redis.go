package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"shipment-ticket-resolver/internal/models"
)

// RedisSource drains a shared intake list so several operator machines can
// feed one resolver fleet. Each element is a JSON-encoded WorkItem pushed
// by the discovery side.
type RedisSource struct {
	client *redis.Client
	key    string
}

func NewRedisSource(client *redis.Client, key string) *RedisSource {
	if key == "" {
		key = "tickets:intake"
	}
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Next(ctx context.Context, limit int) ([]models.WorkItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []models.WorkItem
	for len(items) < limit {
		raw, err := s.client.LPop(ctx, s.key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return items, fmt.Errorf("pop intake list: %w", err)
		}
		var item models.WorkItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			// A malformed element is skipped, not fatal; the producer side
			// owns the encoding.
			continue
		}
		if item.ID == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Push enqueues a discovered work item (producer side, used by tooling and
// tests).
func (s *RedisSource) Push(ctx context.Context, item models.WorkItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal work item: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, raw).Err(); err != nil {
		return fmt.Errorf("push intake list: %w", err)
	}
	return nil
}

// Depth reports how many items wait in the intake list.
func (s *RedisSource) Depth(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}
