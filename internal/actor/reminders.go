package actor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/notifyhub/internal/domain"
	"go.uber.org/zap"
)

// Deadline is an upstream domain trigger: a due date recorded for a user,
// expanded into reminder schedules according to their preferences.
type Deadline struct {
	UserID  string         `json:"userId"`
	Title   string         `json:"title"`
	Body    string         `json:"body,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

func (d *Deadline) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: deadline is required", domain.ErrValidation)
	}
	if strings.TrimSpace(d.UserID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if d.At.IsZero() {
		return fmt.Errorf("%w: deadline instant is required", domain.ErrValidation)
	}
	return nil
}

// RecordDeadline expands a deadline into one reminder schedule per
// preferred hour offset. Offsets that would already be due are skipped.
// Returns the ids of the created schedules; an empty result with nil error
// means reminders are disabled or every offset was in the past.
func (a *Actor) RecordDeadline(ctx context.Context, d *Deadline) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	prefs, err := a.loadPreferences(ctx, d.UserID)
	if err != nil {
		return nil, err
	}
	if !prefs.WantsCategory(domain.TypeDeadline) {
		a.logger.Debug("deadline reminders disabled for user",
			zap.String("userId", d.UserID),
		)
		return nil, nil
	}

	offsets := prefs.HourOffsets
	if len(offsets) == 0 {
		offsets = domain.DefaultHourOffsets
	}

	now := a.now()
	ids := make([]string, 0, len(offsets))
	for _, hours := range offsets {
		dueAt := d.At.Add(-time.Duration(hours) * time.Hour)
		if !dueAt.After(now) {
			continue
		}

		body := d.Body
		if body == "" {
			body = fmt.Sprintf("%s is due in %d hours", d.Title, hours)
		}

		s := &domain.Schedule{
			UserID:   d.UserID,
			Type:     domain.TypeDeadline,
			Title:    d.Title,
			Body:     body,
			Payload:  clonePayload(d.Payload),
			DueAt:    dueAt,
			Channels: []domain.Channel{domain.ChannelLive, domain.ChannelStore},
		}

		id, err := a.Schedule(ctx, s)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// loadPreferences falls back to enabled defaults for users who never
// stored preferences.
func (a *Actor) loadPreferences(ctx context.Context, userID string) (*domain.ReminderPreferences, error) {
	if a.preferences == nil {
		return &domain.ReminderPreferences{UserID: userID, Enabled: true, HourOffsets: domain.DefaultHourOffsets}, nil
	}

	prefs, err := a.preferences.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ReminderPreferences{UserID: userID, Enabled: true, HourOffsets: domain.DefaultHourOffsets}, nil
		}
		return nil, err
	}
	return prefs, nil
}
