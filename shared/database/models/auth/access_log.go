package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccessLog records one request that went through the gateway
type AccessLog struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     *uuid.UUID     `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Method     string         `json:"method" gorm:"type:varchar(10);not null"`
	Path       string         `json:"path" gorm:"type:varchar(500);not null"`
	StatusCode int            `json:"status_code" gorm:"not null;index"`
	IPAddress  string         `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent  string         `json:"user_agent" gorm:"type:text"`
	Duration   int64          `json:"duration_ms" gorm:"not null"`
	RequestID  string         `json:"request_id" gorm:"type:varchar(100);index"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the table name for AccessLog
func (AccessLog) TableName() string {
	return "access_logs"
}

func (l *AccessLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
