package domain

import (
	"fmt"
	"strings"
	"time"
)

// Type enumerates the notification kinds the platform emits. Unknown type
// strings are rejected at construction, not at delivery time.
type Type string

const (
	TypeSubmission    Type = "SUBMISSION"
	TypeApproval      Type = "APPROVAL"
	TypeRejection     Type = "REJECTION"
	TypeDeadline      Type = "DEADLINE_REMINDER"
	TypeAnnouncement  Type = "ANNOUNCEMENT"
	TypePointsAwarded Type = "POINTS_AWARDED"
	TypeSecurityAlert Type = "SECURITY_ALERT"
	TypeBulkMessage   Type = "BULK_MESSAGE"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case TypeSubmission, TypeApproval, TypeRejection, TypeDeadline,
		TypeAnnouncement, TypePointsAwarded, TypeSecurityAlert, TypeBulkMessage:
		return true
	}
	return false
}

func ParseTypeFromString(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return t, nil
}

// Channel represents one delivery mechanism for a message.
type Channel string

const (
	// ChannelLive pushes over a connected socket, or queues while offline.
	ChannelLive Channel = "LIVE"
	// ChannelStore writes through to the relational notification history.
	ChannelStore Channel = "STORE"
	// ChannelExternal hands off to the email/SMS adapters, fire-and-forget.
	ChannelExternal Channel = "EXTERNAL"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelLive, ChannelStore, ChannelExternal:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	c := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return c, nil
}

// Priority represents the message priority level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ParsePriorityFromString(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return p, nil
}

const MaxTitleLength = 255

// Message is a single notification addressed to one recipient.
type Message struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Type        Type           `json:"type"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Payload     map[string]any `json:"payload,omitempty"`
	Priority    Priority       `json:"priority"`
	Channels    []Channel      `json:"channels"`
	CreatedAt   time.Time      `json:"createdAt"`
	DeliveredAt *time.Time     `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time     `json:"readAt,omitempty"`
}

// HasChannel reports whether c is in the message's target channel set.
func (m *Message) HasChannel(c Channel) bool {
	for _, ch := range m.Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy that shares no mutable state with the
// original.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Channels = append([]Channel(nil), m.Channels...)
	if m.Payload != nil {
		cp.Payload = make(map[string]any, len(m.Payload))
		for k, v := range m.Payload {
			cp.Payload[k] = v
		}
	}
	if m.DeliveredAt != nil {
		t := *m.DeliveredAt
		cp.DeliveredAt = &t
	}
	if m.ReadAt != nil {
		t := *m.ReadAt
		cp.ReadAt = &t
	}
	return &cp
}

// MarkDelivered stamps the delivered timestamp. The stamp is set exactly
// once; later calls are no-ops.
func (m *Message) MarkDelivered(at time.Time) {
	if m.DeliveredAt != nil {
		return
	}
	t := at.UTC()
	m.DeliveredAt = &t
}

func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("%w: recipient user id is required", ErrValidation)
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, m.Type)
	}
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len([]rune(m.Title)) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, m.Priority)
	}
	if len(m.Channels) == 0 {
		return fmt.Errorf("%w: channel set must not be empty", ErrValidation)
	}
	seen := make(map[Channel]bool, len(m.Channels))
	for _, c := range m.Channels {
		if !c.IsValid() {
			return fmt.Errorf("%w: invalid channel %q", ErrValidation, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: duplicate channel %q", ErrValidation, c)
		}
		seen[c] = true
	}
	return nil
}
