package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	domainGuest "github.com/staykit/staywap/domains/guest"
	"gorm.io/gorm"
)

type guestModel struct {
	ID              string `gorm:"primaryKey"`
	HotelID         string `gorm:"uniqueIndex:idx_guests_hotel_phone,priority:1;not null"`
	Phone           string `gorm:"uniqueIndex:idx_guests_hotel_phone,priority:2;not null"`
	Name            string
	Preferences     string `gorm:"type:text;default:'{}'"`
	LastInteraction *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (guestModel) TableName() string {
	return "guests"
}

type GuestGormRepository struct {
	db *gorm.DB
}

func NewGuestGormRepository(db *gorm.DB) *GuestGormRepository {
	return &GuestGormRepository{db: db}
}

// Create inserts the guest. The unique index on (hotel_id, phone) is the
// hard backstop behind the keyed lock in the webhook processor; conflicts
// surface as ErrDuplicateGuest so callers can re-read.
func (r *GuestGormRepository) Create(ctx context.Context, g *domainGuest.Guest) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	prefs, err := marshalJSON(g.Preferences)
	if err != nil {
		return err
	}
	m := guestModel{
		ID:              g.ID,
		HotelID:         g.HotelID,
		Phone:           g.Phone,
		Name:            g.Name,
		Preferences:     prefs,
		LastInteraction: g.LastInteraction,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainGuest.ErrDuplicateGuest
		}
		return err
	}
	return nil
}

func (r *GuestGormRepository) GetByPhone(ctx context.Context, hotelID, phone string) (*domainGuest.Guest, error) {
	var m guestModel
	err := r.db.WithContext(ctx).
		Where("hotel_id = ? AND phone = ?", hotelID, phone).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainGuest.ErrGuestNotFound
		}
		return nil, err
	}
	return fromGuestModel(m)
}

func (r *GuestGormRepository) UpdateLastInteraction(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&guestModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_interaction": at, "updated_at": time.Now().UTC()}).Error
}

func fromGuestModel(m guestModel) (*domainGuest.Guest, error) {
	prefs, err := unmarshalJSON[map[string]any](m.Preferences)
	if err != nil {
		return nil, err
	}
	return &domainGuest.Guest{
		ID:              m.ID,
		HotelID:         m.HotelID,
		Phone:           m.Phone,
		Name:            m.Name,
		Preferences:     prefs,
		LastInteraction: m.LastInteraction,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}
