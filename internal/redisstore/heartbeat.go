package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	heartbeatKeyPrefix = "attendance:instances:"
	heartbeatTTL       = 15 * time.Second
)

// HeartbeatStore announces live process instances during rollovers. The
// registry is observability for the blue-green overlap window only; data
// correctness never depends on it.
type HeartbeatStore struct {
	client *redis.Client
}

// NewHeartbeatStore returns redis-backed store.
func NewHeartbeatStore(client *redis.Client) *HeartbeatStore {
	return &HeartbeatStore{client: client}
}

// Beat refreshes this instance's registration.
func (s *HeartbeatStore) Beat(ctx context.Context, instanceID string, startedAt time.Time) error {
	value := fmt.Sprintf("started=%s", startedAt.UTC().Format(time.RFC3339))
	return s.client.Set(ctx, heartbeatKeyPrefix+instanceID, value, heartbeatTTL).Err()
}

// Forget removes this instance's registration on shutdown.
func (s *HeartbeatStore) Forget(ctx context.Context, instanceID string) error {
	return s.client.Del(ctx, heartbeatKeyPrefix+instanceID).Err()
}

// LiveInstances returns the ids of instances with a fresh heartbeat.
func (s *HeartbeatStore) LiveInstances(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, heartbeatKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(heartbeatKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
