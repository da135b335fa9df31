package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validMessage() Message {
	return Message{
		UserID:   "u-1",
		Type:     TypeAnnouncement,
		Title:    "Semester dates published",
		Body:     "The exam calendar is now available.",
		Priority: PriorityNormal,
		Channels: []Channel{ChannelLive, ChannelStore},
	}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(m *Message)
		wantErr bool
	}{
		{name: "valid", mutate: func(m *Message) {}},
		{name: "missing user", mutate: func(m *Message) { m.UserID = " " }, wantErr: true},
		{name: "unknown type", mutate: func(m *Message) { m.Type = "REMINDER_V2" }, wantErr: true},
		{name: "missing title", mutate: func(m *Message) { m.Title = "" }, wantErr: true},
		{name: "title overflow", mutate: func(m *Message) { m.Title = strings.Repeat("a", MaxTitleLength+1) }, wantErr: true},
		{name: "unknown priority", mutate: func(m *Message) { m.Priority = "CRITICAL" }, wantErr: true},
		{name: "empty channel set", mutate: func(m *Message) { m.Channels = nil }, wantErr: true},
		{name: "unknown channel", mutate: func(m *Message) { m.Channels = []Channel{"CARRIER_PIGEON"} }, wantErr: true},
		{name: "duplicate channel", mutate: func(m *Message) { m.Channels = []Channel{ChannelLive, ChannelLive} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := validMessage()
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() error = nil, want validation error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestMessageMarkDeliveredSetsOnce(t *testing.T) {
	t.Parallel()

	m := validMessage()
	first := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	m.MarkDelivered(first)
	m.MarkDelivered(first.Add(time.Hour))

	if m.DeliveredAt == nil {
		t.Fatal("DeliveredAt = nil after MarkDelivered")
	}
	if !m.DeliveredAt.Equal(first) {
		t.Fatalf("DeliveredAt = %v, want %v", m.DeliveredAt, first)
	}
}

func TestParseTypeFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseTypeFromString(" points_awarded ")
	if err != nil {
		t.Fatalf("ParseTypeFromString() error = %v", err)
	}
	if got != TypePointsAwarded {
		t.Fatalf("type = %s, want %s", got, TypePointsAwarded)
	}

	if _, err := ParseTypeFromString("carrier-update"); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestScheduleValidate(t *testing.T) {
	t.Parallel()

	s := Schedule{
		UserID:   "u-1",
		Type:     TypeDeadline,
		Title:    "Project due soon",
		DueAt:    time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC),
		Channels: []Channel{ChannelLive},
		Recurrence: &Recurrence{
			Interval: IntervalWeekly,
		},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	s.Recurrence.Interval = "FORTNIGHTLY"
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for bad interval", err)
	}

	s.Recurrence = nil
	s.DueAt = time.Time{}
	if err := s.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for zero due instant", err)
	}
}
