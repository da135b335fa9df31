package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campushub/notifyhub/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	scheduledSnapshotKey = "notifyhub:snapshot:scheduled"
	queueSnapshotKey     = "notifyhub:snapshot:queue"
)

// SnapshotStore checkpoints the actor's mutable state (scheduled entries and
// the delivery queue) so a restart resumes without losing pending work.
type SnapshotStore struct {
	client *goredis.Client
}

func NewSnapshotStore(client *goredis.Client) (*SnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &SnapshotStore{client: client}, nil
}

// Snapshot writes both state sets in one round trip. A partial write is
// acceptable: recovery treats each key independently.
func (s *SnapshotStore) Snapshot(ctx context.Context, scheduled []*domain.Schedule, queued []*domain.Message) error {
	scheduledJSON, err := json.Marshal(scheduled)
	if err != nil {
		return fmt.Errorf("failed to encode scheduled snapshot: %w", err)
	}
	queuedJSON, err := json.Marshal(queued)
	if err != nil {
		return fmt.Errorf("failed to encode queue snapshot: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, scheduledSnapshotKey, scheduledJSON, 0)
	pipe.Set(ctx, queueSnapshotKey, queuedJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads both state sets. Missing keys mean a cold start and return
// empty slices, not an error.
func (s *SnapshotStore) Load(ctx context.Context) ([]*domain.Schedule, []*domain.Message, error) {
	scheduled, err := loadKey[*domain.Schedule](ctx, s.client, scheduledSnapshotKey)
	if err != nil {
		return nil, nil, err
	}
	queued, err := loadKey[*domain.Message](ctx, s.client, queueSnapshotKey)
	if err != nil {
		return nil, nil, err
	}
	return scheduled, queued, nil
}

func loadKey[T any](ctx context.Context, client *goredis.Client, key string) ([]T, error) {
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot key %s: %w", key, err)
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot key %s: %w", key, err)
	}
	return out, nil
}
