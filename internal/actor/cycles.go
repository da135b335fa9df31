package actor

import (
	"context"
	"fmt"

	"github.com/campushub/notifyhub/internal/domain"
	"go.uber.org/zap"
)

// PromoteDue materializes a message for every schedule whose due instant
// has passed and dispatches it through the normal channel path.
// Non-recurring entries are consumed; recurring ones advance to their next
// occurrence or drop out once the recurrence is exhausted.
func (a *Actor) PromoteDue(ctx context.Context) error {
	now := a.now()

	a.mu.Lock()
	due := make([]*domain.Schedule, 0)
	for _, s := range a.schedules {
		if !s.DueAt.After(now) {
			due = append(due, s)
		}
	}
	a.mu.Unlock()

	for _, s := range due {
		msg := &domain.Message{
			UserID:   s.UserID,
			Type:     s.Type,
			Title:    s.Title,
			Body:     s.Body,
			Payload:  clonePayload(s.Payload),
			Priority: domain.PriorityNormal,
			Channels: append([]domain.Channel(nil), s.Channels...),
		}

		if _, err := a.Send(ctx, msg); err != nil {
			// Durable write failed; keep the entry so the next cycle
			// retries instead of losing the reminder.
			a.logger.Error("schedule promotion dispatch failed",
				zap.String("scheduleId", s.ID),
				zap.String("userId", s.UserID),
				zap.Error(err),
			)
			continue
		}

		a.mu.Lock()
		if next, ok := domain.Next(s.DueAt, s.Recurrence); ok {
			s.DueAt = next
			a.logger.Info("schedule advanced",
				zap.String("scheduleId", s.ID),
				zap.Time("nextDueAt", next),
			)
		} else {
			delete(a.schedules, s.ID)
			a.logger.Info("schedule consumed", zap.String("scheduleId", s.ID))
		}
		a.mu.Unlock()
	}

	a.refreshGauges()
	return nil
}

// DrainQueue prunes expired entries, then attempts delivery for every
// queued message whose recipient is online.
func (a *Actor) DrainQueue(ctx context.Context) error {
	now := a.now()
	if pruned := a.queue.Prune(now); pruned > 0 {
		a.logger.Info("pruned expired queue entries", zap.Int("count", pruned))
		if a.metrics != nil {
			a.metrics.AddQueueDropped("expired", pruned)
		}
	}

	var flushed []*domain.Message
	delivered := a.queue.Drain(a.registry.IsOnline, func(msg *domain.Message) bool {
		if !a.deliverLive(msg) {
			return false
		}
		flushed = append(flushed, msg)
		return true
	})

	for _, msg := range flushed {
		a.markDelivered(ctx, msg)
	}

	if len(delivered) > 0 {
		a.logger.Info("drained queued messages", zap.Int("count", len(delivered)))
	}
	a.refreshGauges()
	return nil
}

// EvictIdle is the periodic form of Cleanup.
func (a *Actor) EvictIdle(_ context.Context) error {
	if evicted := a.Cleanup(); evicted > 0 {
		a.logger.Info("evicted idle connections", zap.Int("count", evicted))
	}
	return nil
}

// Checkpoint writes the schedule set and queue contents to the snapshot
// store. A failed write is returned for the cycle driver to log; the next
// cycle retries. The snapshotter gets deep copies: the promotion cycle
// keeps mutating the live entries while the checkpoint serializes.
func (a *Actor) Checkpoint(ctx context.Context) error {
	if a.snapshots == nil {
		return nil
	}

	a.mu.Lock()
	scheduled := make([]*domain.Schedule, 0, len(a.schedules))
	for _, s := range a.schedules {
		scheduled = append(scheduled, s.Clone())
	}
	a.mu.Unlock()

	if err := a.snapshots.Snapshot(ctx, scheduled, a.queue.Snapshot()); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Restore reloads the last checkpoint. Called once at startup before the
// actor accepts connections or dispatch requests.
func (a *Actor) Restore(ctx context.Context) error {
	if a.snapshots == nil {
		return nil
	}

	scheduled, queued, err := a.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	a.mu.Lock()
	a.schedules = make(map[string]*domain.Schedule, len(scheduled))
	for _, s := range scheduled {
		if s == nil || s.ID == "" {
			continue
		}
		a.schedules[s.ID] = s
	}
	a.mu.Unlock()

	a.queue.Restore(queued, a.now())

	a.logger.Info("actor state restored",
		zap.Int("scheduled", len(scheduled)),
		zap.Int("queued", len(queued)),
	)
	a.refreshGauges()
	return nil
}
