package guest

import (
	"context"
	"errors"
	"time"
)

var (
	ErrGuestNotFound        = errors.New("guest not found")
	ErrDuplicateGuest       = errors.New("guest already exists for this hotel and phone")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Guest is a WhatsApp contact scoped to one hotel. Uniqueness is
// (hotel_id, phone), enforced by the storage layer.
type Guest struct {
	ID              string         `json:"id"`
	HotelID         string         `json:"hotel_id"`
	Phone           string         `json:"phone"` // E.164 without the chat suffix
	Name            string         `json:"name,omitempty"`
	Preferences     map[string]any `json:"preferences,omitempty"`
	LastInteraction *time.Time     `json:"last_interaction,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

const (
	ConversationActive = "active"
	ConversationClosed = "closed"
)

// Conversation groups the messages exchanged with one guest. The pipeline
// assumes at most one active conversation per (hotel, guest); conversations
// are never retired automatically.
type Conversation struct {
	ID            string     `json:"id"`
	HotelID       string     `json:"hotel_id"`
	GuestID       string     `json:"guest_id"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type IGuestRepository interface {
	Create(ctx context.Context, g *Guest) error
	GetByPhone(ctx context.Context, hotelID, phone string) (*Guest, error)
	UpdateLastInteraction(ctx context.Context, id string, at time.Time) error
}

type IConversationRepository interface {
	Create(ctx context.Context, c *Conversation) error
	GetActive(ctx context.Context, hotelID, guestID string) (*Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}
