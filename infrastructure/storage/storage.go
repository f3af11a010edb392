package storage

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the pipeline persists to.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&hotelModel{},
		&guestModel{},
		&conversationModel{},
		&messageModel{},
		&queueModel{},
		&notificationModel{},
	)
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON[T any](raw string) (T, error) {
	var out T
	if raw == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
