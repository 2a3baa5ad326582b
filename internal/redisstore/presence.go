package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence is a cached open-session marker for live dashboards. It is
// write-through after a durable commit and never consulted by any write
// path: the attendance_sessions table stays the single source of truth,
// which keeps both live instances correct when the cache is stale or down.
type Presence struct {
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	CheckInAt time.Time `json:"check_in_at"`
	Late      bool      `json:"late"`
}

// PresenceStore manages the best-effort cache of today's open sessions.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceStore returns redis-backed store.
func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

func (s *PresenceStore) key(userID int64, date time.Time) string {
	return fmt.Sprintf("attendance:present:%s:%d", date.Format("2006-01-02"), userID)
}

// Save caches an open session.
func (s *PresenceStore) Save(ctx context.Context, date time.Time, p Presence) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(p.UserID, date), data, s.ttl).Err()
}

// Delete removes the marker after check-out.
func (s *PresenceStore) Delete(ctx context.Context, userID int64, date time.Time) error {
	return s.client.Del(ctx, s.key(userID, date)).Err()
}

// ListDay returns all cached markers for the date.
func (s *PresenceStore) ListDay(ctx context.Context, date time.Time) ([]Presence, error) {
	pattern := fmt.Sprintf("attendance:present:%s:*", date.Format("2006-01-02"))
	var result []Presence
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var p Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		result = append(result, p)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
