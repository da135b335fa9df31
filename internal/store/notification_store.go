package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushub/notifyhub/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationStore is the durable system of record for notification
// history and read/unread state.
type NotificationStore interface {
	Save(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Message, int64, error)
}

// PreferenceStore holds per-user reminder settings.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*domain.ReminderPreferences, error)
	Save(ctx context.Context, prefs *domain.ReminderPreferences) error
}

type gormNotificationStore struct {
	db *gorm.DB
}

func NewNotificationStore(db *gorm.DB) (NotificationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	return &gormNotificationStore{db: db}, nil
}

func (s *gormNotificationStore) Save(ctx context.Context, msg *domain.Message) error {
	model := notificationModelFromDomain(msg)
	if model == nil {
		return fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *gormNotificationStore) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model NotificationModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", strings.TrimSpace(id)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return notificationModelToDomain(&model), nil
}

func (s *gormNotificationStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Update("delivered_at", at.UTC())
	if result.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, result.Error)
	}
	// Zero rows means either unknown id or already stamped; both are fine,
	// the delivered stamp is set at most once.
	return nil
}

func (s *gormNotificationStore) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", at.UTC())
	if result.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Distinguish "not yours" from "not there" and "already read".
	var model NotificationModel
	err := s.db.WithContext(ctx).Select("id", "user_id", "read_at").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if model.UserID != userID {
		return fmt.Errorf("%w: notification %s does not belong to user %s", domain.ErrUnauthorized, id, userID)
	}
	return nil
}

func (s *gormNotificationStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Message, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.WithContext(ctx).Model(&NotificationModel{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	out := make([]domain.Message, 0, len(models))
	for i := range models {
		out = append(out, *notificationModelToDomain(&models[i]))
	}
	return out, total, nil
}

type gormPreferenceStore struct {
	db *gorm.DB
}

func NewPreferenceStore(db *gorm.DB) (PreferenceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	return &gormPreferenceStore{db: db}, nil
}

func (s *gormPreferenceStore) Get(ctx context.Context, userID string) (*domain.ReminderPreferences, error) {
	var model ReminderPreferencesModel
	err := s.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: preferences for user %s", domain.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return preferencesModelToDomain(&model), nil
}

func (s *gormPreferenceStore) Save(ctx context.Context, prefs *domain.ReminderPreferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	model := preferencesModelFromDomain(prefs)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
