package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	domainHotel "github.com/staykit/staywap/domains/hotel"
	pkgError "github.com/staykit/staywap/pkg/error"
	"gorm.io/gorm"
)

type hotelModel struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	WhatsappNumber string `gorm:"index:idx_hotels_number"`
	InstanceID     string `gorm:"uniqueIndex:idx_hotels_instance;not null"`
	APIToken       string `gorm:"not null"`
	WebhookToken   string
	Settings       string `gorm:"type:text;default:'{}'"`
	Enabled        bool   `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (hotelModel) TableName() string {
	return "hotels"
}

type HotelGormRepository struct {
	db *gorm.DB
}

func NewHotelGormRepository(db *gorm.DB) *HotelGormRepository {
	return &HotelGormRepository{db: db}
}

func (r *HotelGormRepository) Create(ctx context.Context, h *domainHotel.Hotel) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now

	m, err := toHotelModel(h)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *HotelGormRepository) GetByID(ctx context.Context, id string) (*domainHotel.Hotel, error) {
	var m hotelModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgError.NotFoundError("hotel not found: " + id)
		}
		return nil, err
	}
	return fromHotelModel(m)
}

func (r *HotelGormRepository) GetByInstanceID(ctx context.Context, instanceID string) (*domainHotel.Hotel, error) {
	var m hotelModel
	if err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgError.NotFoundError("hotel not found for instance: " + instanceID)
		}
		return nil, err
	}
	return fromHotelModel(m)
}

func (r *HotelGormRepository) UpdateSettings(ctx context.Context, id string, settings domainHotel.Settings) error {
	raw, err := marshalJSON(settings)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&hotelModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"settings": raw, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("hotel not found: " + id)
	}
	return nil
}

func toHotelModel(h *domainHotel.Hotel) (hotelModel, error) {
	settings, err := marshalJSON(h.Settings)
	if err != nil {
		return hotelModel{}, err
	}
	return hotelModel{
		ID:             h.ID,
		Name:           h.Name,
		WhatsappNumber: h.WhatsappNumber,
		InstanceID:     h.InstanceID,
		APIToken:       h.APIToken,
		WebhookToken:   h.WebhookToken,
		Settings:       settings,
		Enabled:        h.Enabled,
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	}, nil
}

func fromHotelModel(m hotelModel) (*domainHotel.Hotel, error) {
	settings, err := unmarshalJSON[domainHotel.Settings](m.Settings)
	if err != nil {
		return nil, err
	}
	return &domainHotel.Hotel{
		ID:             m.ID,
		Name:           m.Name,
		WhatsappNumber: m.WhatsappNumber,
		InstanceID:     m.InstanceID,
		APIToken:       m.APIToken,
		WebhookToken:   m.WebhookToken,
		Settings:       settings,
		Enabled:        m.Enabled,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}
