package models

import (
	"time"
)

type Role struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:100;uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Active      bool      `json:"active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Permissions []Permission `json:"permissions" gorm:"many2many:role_permissions;"`
}

// Well-known roles created by the seeder
const (
	RoleAdmin   = "ADMIN"
	RoleCarga   = "CARGA"
	RoleEdicion = "EDICION"
)
