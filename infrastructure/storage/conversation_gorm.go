package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	domainGuest "github.com/staykit/staywap/domains/guest"
	"gorm.io/gorm"
)

type conversationModel struct {
	ID            string `gorm:"primaryKey"`
	HotelID       string `gorm:"index:idx_conversations_hotel_guest,priority:1;not null"`
	GuestID       string `gorm:"index:idx_conversations_hotel_guest,priority:2;not null"`
	Status        string `gorm:"index:idx_conversations_status;default:'active'"`
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

func (conversationModel) TableName() string {
	return "conversations"
}

type ConversationGormRepository struct {
	db *gorm.DB
}

func NewConversationGormRepository(db *gorm.DB) *ConversationGormRepository {
	return &ConversationGormRepository{db: db}
}

func (r *ConversationGormRepository) Create(ctx context.Context, c *domainGuest.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domainGuest.ConversationActive
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m := conversationModel{
		ID:            c.ID,
		HotelID:       c.HotelID,
		GuestID:       c.GuestID,
		Status:        c.Status,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

// GetActive returns the most recent active conversation for the guest.
// Ordering by created_at keeps behavior stable should duplicates ever
// slip in through a race.
func (r *ConversationGormRepository) GetActive(ctx context.Context, hotelID, guestID string) (*domainGuest.Conversation, error) {
	var m conversationModel
	err := r.db.WithContext(ctx).
		Where("hotel_id = ? AND guest_id = ? AND status = ?", hotelID, guestID, domainGuest.ConversationActive).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainGuest.ErrConversationNotFound
		}
		return nil, err
	}
	return &domainGuest.Conversation{
		ID:            m.ID,
		HotelID:       m.HotelID,
		GuestID:       m.GuestID,
		Status:        m.Status,
		LastMessageAt: m.LastMessageAt,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func (r *ConversationGormRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&conversationModel{}).
		Where("id = ?", id).
		Update("last_message_at", at).Error
}
