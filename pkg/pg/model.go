package pg

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is embedded by every entity. IDs are generated client side so the
// same entities work on postgres and on the sqlite test database.
type Model struct {
	ID        string    `gorm:"primaryKey;type:varchar(36);column:id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// IsValidID reports whether s looks like an id produced by Model.
func IsValidID(s string) bool {
	return uuid.Validate(s) == nil
}
