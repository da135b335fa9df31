package redis

import (
	"context"
	"testing"
	"time"

	"github.com/campushub/notifyhub/internal/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewSnapshotStore(rdb)
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}

	due := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	until := due.AddDate(0, 2, 0)
	scheduled := []*domain.Schedule{
		{
			ID:     "s-1",
			UserID: "u-1",
			Type:   domain.TypeDeadline,
			Title:  "Thesis draft due",
			DueAt:  due,
			Recurrence: &domain.Recurrence{
				Interval:  domain.IntervalWeekly,
				Until:     &until,
				AnchorDay: 0,
			},
			Channels: []domain.Channel{domain.ChannelLive, domain.ChannelStore},
		},
	}
	queued := []*domain.Message{
		{
			ID:       "m-1",
			UserID:   "u-2",
			Type:     domain.TypeAnnouncement,
			Title:    "Welcome week",
			Priority: domain.PriorityNormal,
			Channels: []domain.Channel{domain.ChannelLive},
			CreatedAt: time.Date(2026, time.June, 30, 8, 0, 0, 0, time.UTC),
		},
	}

	if err := store.Snapshot(context.Background(), scheduled, queued); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	gotScheduled, gotQueued, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(gotScheduled) != 1 {
		t.Fatalf("scheduled = %d entries, want 1", len(gotScheduled))
	}
	s := gotScheduled[0]
	if s.ID != "s-1" || !s.DueAt.Equal(due) {
		t.Fatalf("scheduled[0] = %+v, want id s-1 due %v", s, due)
	}
	if s.Recurrence == nil || s.Recurrence.Interval != domain.IntervalWeekly {
		t.Fatalf("recurrence = %+v, want weekly", s.Recurrence)
	}
	if s.Recurrence.Until == nil || !s.Recurrence.Until.Equal(until) {
		t.Fatalf("until = %v, want %v", s.Recurrence.Until, until)
	}

	if len(gotQueued) != 1 {
		t.Fatalf("queued = %d entries, want 1", len(gotQueued))
	}
	if gotQueued[0].ID != "m-1" || gotQueued[0].UserID != "u-2" {
		t.Fatalf("queued[0] = %+v, want id m-1 user u-2", gotQueued[0])
	}
}

func TestSnapshotStoreLoadColdStart(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewSnapshotStore(rdb)
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}

	scheduled, queued, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(scheduled) != 0 || len(queued) != 0 {
		t.Fatalf("cold start = (%d, %d) entries, want (0, 0)", len(scheduled), len(queued))
	}
}

func TestSnapshotOverwritesPrevious(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	store, err := NewSnapshotStore(rdb)
	if err != nil {
		t.Fatalf("NewSnapshotStore() error = %v", err)
	}

	first := []*domain.Schedule{{ID: "s-1", UserID: "u-1", Type: domain.TypeDeadline, Title: "a", DueAt: time.Now().UTC(), Channels: []domain.Channel{domain.ChannelLive}}}
	if err := store.Snapshot(context.Background(), first, nil); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if err := store.Snapshot(context.Background(), nil, nil); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	scheduled, _, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(scheduled) != 0 {
		t.Fatalf("scheduled = %d entries after overwrite, want 0", len(scheduled))
	}
}
