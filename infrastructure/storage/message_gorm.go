package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	domainMessage "github.com/staykit/staywap/domains/message"
	"gorm.io/gorm"
)

type messageModel struct {
	ID               string `gorm:"primaryKey"`
	HotelID          string `gorm:"index:idx_messages_hotel;not null"`
	ConversationID   string `gorm:"index:idx_messages_conversation;not null"`
	Direction        string `gorm:"not null"`
	Type             string `gorm:"default:'text'"`
	Content          string `gorm:"type:text"`
	GatewayMessageID string `gorm:"index:idx_messages_gateway_id"`
	DeliveryStatus   string
	Metadata         string `gorm:"type:text;default:'{}'"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (messageModel) TableName() string {
	return "messages"
}

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) Create(ctx context.Context, m *domainMessage.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	meta, err := marshalJSON(m.Metadata)
	if err != nil {
		return err
	}
	model := messageModel{
		ID:               m.ID,
		HotelID:          m.HotelID,
		ConversationID:   m.ConversationID,
		Direction:        m.Direction,
		Type:             m.Type,
		Content:          m.Content,
		GatewayMessageID: m.GatewayMessageID,
		DeliveryStatus:   m.DeliveryStatus,
		Metadata:         meta,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *MessageGormRepository) GetByID(ctx context.Context, id string) (*domainMessage.Message, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainMessage.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m)
}

// GetByGatewayID resolves status webhooks to local rows. The column is
// indexed so this stays a point lookup, not a JSON scan.
func (r *MessageGormRepository) GetByGatewayID(ctx context.Context, hotelID, gatewayMessageID string) (*domainMessage.Message, error) {
	var m messageModel
	err := r.db.WithContext(ctx).
		Where("hotel_id = ? AND gateway_message_id = ?", hotelID, gatewayMessageID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainMessage.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m)
}

func (r *MessageGormRepository) SetGatewayID(ctx context.Context, id, gatewayMessageID string) error {
	return r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"gateway_message_id": gatewayMessageID,
			"delivery_status":    domainMessage.DeliverySent,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *MessageGormRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"delivery_status": domainMessage.DeliverySent,
			"updated_at":      at,
		}).Error
}

func (r *MessageGormRepository) UpdateDeliveryStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"delivery_status": status,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func fromMessageModel(m messageModel) (*domainMessage.Message, error) {
	meta, err := unmarshalJSON[map[string]any](m.Metadata)
	if err != nil {
		return nil, err
	}
	return &domainMessage.Message{
		ID:               m.ID,
		HotelID:          m.HotelID,
		ConversationID:   m.ConversationID,
		Direction:        m.Direction,
		Type:             m.Type,
		Content:          m.Content,
		GatewayMessageID: m.GatewayMessageID,
		DeliveryStatus:   m.DeliveryStatus,
		Metadata:         meta,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}
