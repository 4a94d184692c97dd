package auth

import (
	"time"

	"transparencia-backend/shared/database/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken is an opaque long-lived token bound to the client that requested it
type RefreshToken struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Token     string     `json:"-" gorm:"size:128;uniqueIndex;not null"`
	UserAgent string     `json:"user_agent" gorm:"size:500"`
	IPAddress string     `json:"ip_address" gorm:"size:50"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt time.Time  `json:"created_at"`

	// Relations
	User models.User `json:"-" gorm:"foreignKey:UserID"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Usable reports whether the token is neither revoked nor expired at now
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
