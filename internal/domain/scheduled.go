package domain

import (
	"fmt"
	"strings"
	"time"
)

// Interval classifies how often a recurring schedule fires.
type Interval string

const (
	IntervalDaily   Interval = "DAILY"
	IntervalWeekly  Interval = "WEEKLY"
	IntervalMonthly Interval = "MONTHLY"
)

func (i Interval) String() string { return string(i) }

func (i Interval) IsValid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

func ParseIntervalFromString(s string) (Interval, error) {
	i := Interval(strings.ToUpper(strings.TrimSpace(s)))
	if !i.IsValid() {
		return "", fmt.Errorf("%w: invalid recurrence interval %q", ErrValidation, s)
	}
	return i, nil
}

// Recurrence is the repeat policy of a scheduled notification.
// AnchorDay pins monthly schedules to their original day-of-month so a
// clamped hop (31st into a 30-day month) does not lose the anchor.
type Recurrence struct {
	Interval  Interval   `json:"interval"`
	Until     *time.Time `json:"until,omitempty"`
	AnchorDay int        `json:"anchorDay,omitempty"`
}

func (r *Recurrence) Validate() error {
	if r == nil {
		return nil
	}
	if !r.Interval.IsValid() {
		return fmt.Errorf("%w: invalid recurrence interval %q", ErrValidation, r.Interval)
	}
	if r.AnchorDay < 0 || r.AnchorDay > 31 {
		return fmt.Errorf("%w: anchor day %d out of range", ErrValidation, r.AnchorDay)
	}
	return nil
}

// Schedule is a notification to be materialized at a future instant.
// A non-recurring entry is consumed exactly once on firing; a recurring
// entry is advanced via Next until the recurrence is exhausted.
type Schedule struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	Type       Type           `json:"type"`
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Payload    map[string]any `json:"payload,omitempty"`
	DueAt      time.Time      `json:"dueAt"`
	Recurrence *Recurrence    `json:"recurrence,omitempty"`
	Channels   []Channel      `json:"channels"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Clone returns a deep copy that shares no mutable state with the
// original.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Channels = append([]Channel(nil), s.Channels...)
	if s.Payload != nil {
		cp.Payload = make(map[string]any, len(s.Payload))
		for k, v := range s.Payload {
			cp.Payload[k] = v
		}
	}
	if s.Recurrence != nil {
		rc := *s.Recurrence
		if s.Recurrence.Until != nil {
			until := *s.Recurrence.Until
			rc.Until = &until
		}
		cp.Recurrence = &rc
	}
	return &cp
}

func (s *Schedule) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: schedule is required", ErrValidation)
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: recipient user id is required", ErrValidation)
	}
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, s.Type)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if s.DueAt.IsZero() {
		return fmt.Errorf("%w: due instant is required", ErrValidation)
	}
	if len(s.Channels) == 0 {
		return fmt.Errorf("%w: channel set must not be empty", ErrValidation)
	}
	for _, c := range s.Channels {
		if !c.IsValid() {
			return fmt.Errorf("%w: invalid channel %q", ErrValidation, c)
		}
	}
	if err := s.Recurrence.Validate(); err != nil {
		return err
	}
	return nil
}
