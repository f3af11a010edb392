package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	domainNotification "github.com/staykit/staywap/domains/notification"
	"gorm.io/gorm"
)

type notificationModel struct {
	ID        string `gorm:"primaryKey"`
	HotelID   string `gorm:"index:idx_notifications_hotel;not null"`
	Severity  string `gorm:"default:'info'"`
	Title     string
	Message   string `gorm:"type:text"`
	Read      bool   `gorm:"default:false"`
	CreatedAt time.Time
}

func (notificationModel) TableName() string {
	return "staff_notifications"
}

type NotificationGormRepository struct {
	db *gorm.DB
}

func NewNotificationGormRepository(db *gorm.DB) *NotificationGormRepository {
	return &NotificationGormRepository{db: db}
}

func (r *NotificationGormRepository) Create(ctx context.Context, n *domainNotification.StaffNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m := notificationModel{
		ID:        n.ID,
		HotelID:   n.HotelID,
		Severity:  n.Severity,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *NotificationGormRepository) ListByHotel(ctx context.Context, hotelID string, limit int) ([]*domainNotification.StaffNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []notificationModel
	err := r.db.WithContext(ctx).
		Where("hotel_id = ?", hotelID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domainNotification.StaffNotification, 0, len(models))
	for _, m := range models {
		out = append(out, &domainNotification.StaffNotification{
			ID:        m.ID,
			HotelID:   m.HotelID,
			Severity:  m.Severity,
			Title:     m.Title,
			Message:   m.Message,
			Read:      m.Read,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func (r *NotificationGormRepository) MarkRead(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&notificationModel{}).
		Where("id = ?", id).
		Update("read", true).Error
}
