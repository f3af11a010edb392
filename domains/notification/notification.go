package notification

import (
	"context"
	"time"
)

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// StaffNotification surfaces critical gateway-state transitions to hotel
// staff. The admin UI consuming these rows lives outside this repo.
type StaffNotification struct {
	ID        string    `json:"id"`
	HotelID   string    `json:"hotel_id"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type INotificationRepository interface {
	Create(ctx context.Context, n *StaffNotification) error
	ListByHotel(ctx context.Context, hotelID string, limit int) ([]*StaffNotification, error)
	MarkRead(ctx context.Context, id string) error
}
