package override

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/lusosms/dispatch-engine/internal/models"
)

// RedisSource reads the administrative override from a Redis key the admin
// panel writes. A missing key means no override.
type RedisSource struct {
	client *redis.Client
	key    string
}

// NewRedisSource constructs a RedisSource around an existing client.
func NewRedisSource(client *redis.Client, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

// Current implements Source.
func (s *RedisSource) Current(ctx context.Context) (models.GatewayOverride, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return models.OverrideNone, nil
	}
	if err != nil {
		return models.OverrideNone, fmt.Errorf("override: read %s: %w", s.key, err)
	}
	return models.ParseOverride(value)
}
