package message

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMessageNotFound   = errors.New("message not found")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrNotRetryable      = errors.New("queue item is not in failed status")
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message subtypes. Media subtypes carry their caption or filename as the
// plain-text content.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeDocument = "document"
	TypeLocation = "location"
	TypeContact  = "contact"
	TypePoll     = "poll"
)

// Delivery statuses reported by the gateway through outgoingMessageStatus.
const (
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryRead      = "read"
	DeliveryFailed    = "failed"
)

type Message struct {
	ID               string         `json:"id"`
	HotelID          string         `json:"hotel_id"`
	ConversationID   string         `json:"conversation_id"`
	Direction        string         `json:"direction"`
	Type             string         `json:"type"`
	Content          string         `json:"content"`
	GatewayMessageID string         `json:"gateway_message_id,omitempty"`
	DeliveryStatus   string         `json:"delivery_status,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Queue lifecycle: pending|scheduled -> sending -> sent|failed.
const (
	QueuePending   = "pending"
	QueueScheduled = "scheduled"
	QueueSending   = "sending"
	QueueSent      = "sent"
	QueueFailed    = "failed"
)

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// MaxQueueRetries caps the automatic background retries per queue row.
// After exhaustion the row stays failed for manual retry.
const MaxQueueRetries = 3

// QueueItem is one delivery-queue row. Content is a denormalized snapshot
// so the retry path does not depend on the message row staying unchanged.
type QueueItem struct {
	ID               string     `json:"id"`
	HotelID          string     `json:"hotel_id"`
	GuestID          string     `json:"guest_id"`
	MessageID        string     `json:"message_id"`
	Phone            string     `json:"phone"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	LastAttemptAt    *time.Time `json:"last_attempt_at,omitempty"`
	GatewayMessageID string     `json:"gateway_message_id,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	RetryCount       int        `json:"retry_count"`
	Content          string     `json:"content"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// --- Send API types ---

type SendTextRequest struct {
	HotelID    string     `json:"hotel_id"`
	Phone      string     `json:"phone"`
	Message    string     `json:"message"`
	Priority   string     `json:"priority,omitempty"`
	ScheduleAt *time.Time `json:"schedule_at,omitempty"`
}

type SendFileRequest struct {
	HotelID    string     `json:"hotel_id"`
	Phone      string     `json:"phone"`
	FileURL    string     `json:"file_url"`
	FileName   string     `json:"file_name"`
	Caption    string     `json:"caption,omitempty"`
	Priority   string     `json:"priority,omitempty"`
	ScheduleAt *time.Time `json:"schedule_at,omitempty"`
}

// Locations are always sent immediately, never scheduled.
type SendLocationRequest struct {
	HotelID   string  `json:"hotel_id"`
	Phone     string  `json:"phone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
	Priority  string  `json:"priority,omitempty"`
}

type SendResponse struct {
	QueueID          string `json:"queue_id"`
	MessageID        string `json:"message_id"`
	Status           string `json:"status"`
	GatewayMessageID string `json:"gateway_message_id,omitempty"`
}

type ISendUsecase interface {
	SendText(ctx context.Context, req SendTextRequest) (*SendResponse, error)
	SendFile(ctx context.Context, req SendFileRequest) (*SendResponse, error)
	SendLocation(ctx context.Context, req SendLocationRequest) (*SendResponse, error)
	RetryFailed(ctx context.Context, queueID string) (*SendResponse, error)
	GetQueueItem(ctx context.Context, queueID string) (*QueueItem, error)
	DispatchDueScheduled(ctx context.Context) int
}

type IMessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	GetByGatewayID(ctx context.Context, hotelID, gatewayMessageID string) (*Message, error)
	SetGatewayID(ctx context.Context, id, gatewayMessageID string) error
	MarkConfirmed(ctx context.Context, id string, at time.Time) error
	UpdateDeliveryStatus(ctx context.Context, id, status string) error
}

type IQueueRepository interface {
	Create(ctx context.Context, q *QueueItem) error
	GetByID(ctx context.Context, id string) (*QueueItem, error)
	MarkSending(ctx context.Context, id string, at time.Time) error
	MarkSent(ctx context.Context, id, gatewayMessageID string, at time.Time) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	DueScheduled(ctx context.Context, now time.Time, limit int) ([]*QueueItem, error)
}
