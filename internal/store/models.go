package store

import (
	"time"

	"github.com/campushub/notifyhub/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
// Read-state updates supersede rows; rows are never deleted.
type NotificationModel struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	UserID      string          `gorm:"type:varchar(64);not null;index"`
	Type        domain.Type     `gorm:"type:varchar(32);not null"`
	Title       string          `gorm:"type:varchar(255);not null"`
	Body        string          `gorm:"type:text;not null"`
	Payload     map[string]any  `gorm:"serializer:json;type:jsonb"`
	Priority    domain.Priority `gorm:"type:varchar(10);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// ReminderPreferencesModel is the persistence model for per-user reminder
// settings.
type ReminderPreferencesModel struct {
	UserID      string        `gorm:"type:varchar(64);primaryKey"`
	Enabled     bool          `gorm:"not null;default:true"`
	Categories  []domain.Type `gorm:"serializer:json;type:jsonb"`
	HourOffsets []int         `gorm:"serializer:json;type:jsonb;not null"`
	UpdatedAt   time.Time
}

func (ReminderPreferencesModel) TableName() string {
	return "reminder_preferences"
}

func notificationModelFromDomain(m *domain.Message) *NotificationModel {
	if m == nil {
		return nil
	}
	return &NotificationModel{
		ID:          m.ID,
		UserID:      m.UserID,
		Type:        m.Type,
		Title:       m.Title,
		Body:        m.Body,
		Payload:     m.Payload,
		Priority:    m.Priority,
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
	}
}

func notificationModelToDomain(model *NotificationModel) *domain.Message {
	if model == nil {
		return nil
	}
	return &domain.Message{
		ID:          model.ID,
		UserID:      model.UserID,
		Type:        model.Type,
		Title:       model.Title,
		Body:        model.Body,
		Payload:     model.Payload,
		Priority:    model.Priority,
		// The durable row does not carry the channel set; history reads
		// always concern the durable channel.
		Channels:    []domain.Channel{domain.ChannelStore},
		CreatedAt:   model.CreatedAt,
		DeliveredAt: model.DeliveredAt,
		ReadAt:      model.ReadAt,
	}
}

func preferencesModelFromDomain(p *domain.ReminderPreferences) *ReminderPreferencesModel {
	if p == nil {
		return nil
	}
	return &ReminderPreferencesModel{
		UserID:      p.UserID,
		Enabled:     p.Enabled,
		Categories:  p.Categories,
		HourOffsets: p.HourOffsets,
	}
}

func preferencesModelToDomain(model *ReminderPreferencesModel) *domain.ReminderPreferences {
	if model == nil {
		return nil
	}
	return &domain.ReminderPreferences{
		UserID:      model.UserID,
		Enabled:     model.Enabled,
		Categories:  model.Categories,
		HourOffsets: model.HourOffsets,
	}
}
