package participation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message statuses
const (
	StatusPending    = "pendiente"
	StatusInProgress = "en_proceso"
	StatusAnswered   = "respondido"
	StatusClosed     = "cerrado"
)

// Message channels
const (
	ChannelWeb      = "web"
	ChannelEmail    = "email"
	ChannelPhone    = "telefono"
	ChannelInPerson = "presencial"
	DefaultChannel  = ChannelWeb
)

// ValidStatus reports whether s is a known message status
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusAnswered, StatusClosed:
		return true
	}
	return false
}

// ValidChannel reports whether ch is a known contact channel
func ValidChannel(ch string) bool {
	switch ch {
	case ChannelWeb, ChannelEmail, ChannelPhone, ChannelInPerson:
		return true
	}
	return false
}

// Message is a citizen-participation inbox entry
type Message struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Folio       string     `json:"folio" gorm:"size:20;uniqueIndex;not null"`
	FullName    string     `json:"full_name" gorm:"size:200;not null"`
	Email       string     `json:"email" gorm:"size:100;not null"`
	Subject     string     `json:"subject" gorm:"size:200;not null"`
	Body        string     `json:"body" gorm:"type:text;not null"`
	Status      string     `json:"status" gorm:"size:20;not null;index"`
	Channel     string     `json:"channel" gorm:"size:20;not null;index"`
	TargetArea  string     `json:"target_area,omitempty" gorm:"size:200"`
	Response    string     `json:"response,omitempty" gorm:"type:text"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	RespondedBy *uuid.UUID `json:"responded_by,omitempty" gorm:"type:uuid"`
	IPAddress   string     `json:"-" gorm:"size:45"`
	UserAgent   string     `json:"-" gorm:"size:500"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// News is a published news item shown in the portal carousel
type News struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Summary     string    `json:"summary" gorm:"size:500"`
	Content     string    `json:"content" gorm:"type:text"`
	ImageURL    string    `json:"image_url" gorm:"size:500"`
	ImageKey    string    `json:"-" gorm:"size:500"`
	Link        string    `json:"link" gorm:"size:500"`
	PublishedAt time.Time `json:"published_at" gorm:"index"`
	Active      bool      `json:"active" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for News
func (News) TableName() string {
	return "news"
}

// SocialLink is an official social network profile
type SocialLink struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:100;not null"`
	URL         string    `json:"url" gorm:"size:500;not null"`
	Icon        string    `json:"icon" gorm:"size:100"`
	Description string    `json:"description" gorm:"size:255"`
	Active      bool      `json:"active" gorm:"not null"`
	SortOrder   int       `json:"sort_order" gorm:"default:0;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
