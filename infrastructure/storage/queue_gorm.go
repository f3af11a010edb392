package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	domainMessage "github.com/staykit/staywap/domains/message"
	"gorm.io/gorm"
)

type queueModel struct {
	ID               string `gorm:"primaryKey"`
	HotelID          string `gorm:"index:idx_queue_hotel;not null"`
	GuestID          string `gorm:"not null"`
	MessageID        string `gorm:"index:idx_queue_message;not null"`
	Phone            string `gorm:"not null"`
	Priority         string `gorm:"default:'normal'"`
	Status           string `gorm:"index:idx_queue_status;default:'pending'"`
	ScheduledAt      *time.Time `gorm:"index:idx_queue_scheduled"`
	SentAt           *time.Time
	LastAttemptAt    *time.Time
	GatewayMessageID string `gorm:"index:idx_queue_gateway_id"`
	ErrorMessage     string `gorm:"type:text"`
	RetryCount       int    `gorm:"default:0"`
	Content          string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (queueModel) TableName() string {
	return "message_queue"
}

type QueueGormRepository struct {
	db *gorm.DB
}

func NewQueueGormRepository(db *gorm.DB) *QueueGormRepository {
	return &QueueGormRepository{db: db}
}

func (r *QueueGormRepository) Create(ctx context.Context, q *domainMessage.QueueItem) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	if q.Priority == "" {
		q.Priority = domainMessage.PriorityNormal
	}
	if q.Status == "" {
		q.Status = domainMessage.QueuePending
	}
	m := toQueueModel(q)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *QueueGormRepository) GetByID(ctx context.Context, id string) (*domainMessage.QueueItem, error) {
	var m queueModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainMessage.ErrQueueItemNotFound
		}
		return nil, err
	}
	return fromQueueModel(m), nil
}

func (r *QueueGormRepository) MarkSending(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&queueModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          domainMessage.QueueSending,
			"last_attempt_at": at,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *QueueGormRepository) MarkSent(ctx context.Context, id, gatewayMessageID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&queueModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             domainMessage.QueueSent,
			"gateway_message_id": gatewayMessageID,
			"sent_at":            at,
			"error_message":      "",
			"updated_at":         time.Now().UTC(),
		}).Error
}

// MarkFailed records the error and bumps retry_count in one statement so
// concurrent failure paths never lose an increment.
func (r *QueueGormRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	return r.db.WithContext(ctx).Model(&queueModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domainMessage.QueueFailed,
			"error_message": errorMessage,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"updated_at":    time.Now().UTC(),
		}).Error
}

// DueScheduled returns scheduled rows whose time has come, oldest first.
func (r *QueueGormRepository) DueScheduled(ctx context.Context, now time.Time, limit int) ([]*domainMessage.QueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []queueModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", domainMessage.QueueScheduled, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domainMessage.QueueItem, 0, len(models))
	for _, m := range models {
		out = append(out, fromQueueModel(m))
	}
	return out, nil
}

func toQueueModel(q *domainMessage.QueueItem) queueModel {
	return queueModel{
		ID:               q.ID,
		HotelID:          q.HotelID,
		GuestID:          q.GuestID,
		MessageID:        q.MessageID,
		Phone:            q.Phone,
		Priority:         q.Priority,
		Status:           q.Status,
		ScheduledAt:      q.ScheduledAt,
		SentAt:           q.SentAt,
		LastAttemptAt:    q.LastAttemptAt,
		GatewayMessageID: q.GatewayMessageID,
		ErrorMessage:     q.ErrorMessage,
		RetryCount:       q.RetryCount,
		Content:          q.Content,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
}

func fromQueueModel(m queueModel) *domainMessage.QueueItem {
	return &domainMessage.QueueItem{
		ID:               m.ID,
		HotelID:          m.HotelID,
		GuestID:          m.GuestID,
		MessageID:        m.MessageID,
		Phone:            m.Phone,
		Priority:         m.Priority,
		Status:           m.Status,
		ScheduledAt:      m.ScheduledAt,
		SentAt:           m.SentAt,
		LastAttemptAt:    m.LastAttemptAt,
		GatewayMessageID: m.GatewayMessageID,
		ErrorMessage:     m.ErrorMessage,
		RetryCount:       m.RetryCount,
		Content:          m.Content,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
