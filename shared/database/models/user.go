package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string     `json:"email" gorm:"size:150;uniqueIndex;not null"`
	Password     string     `json:"-" gorm:"not null"`
	FirstName    string     `json:"first_name" gorm:"size:100"`
	LastName     string     `json:"last_name" gorm:"size:100"`
	Phone        string     `json:"phone" gorm:"size:20"`
	Active       bool       `json:"active" gorm:"not null"`
	PhotoURL     string     `json:"photo_url" gorm:"size:500"`
	Area         string     `json:"area" gorm:"size:200"`
	DependencyID *uint      `json:"dependency_id" gorm:"index"`
	LastAccessAt *time.Time `json:"last_access_at"`

	// Two-factor authentication
	TOTPSecret  *string `json:"-" gorm:"size:64"`
	TOTPEnabled bool    `json:"totp_enabled" gorm:"default:false;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Roles      []Role      `json:"roles" gorm:"many2many:user_roles;"`
	Dependency *Dependency `json:"dependency,omitempty" gorm:"foreignKey:DependencyID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// RoleNames returns the names of the active roles of the user
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		if role.Active {
			names = append(names, role.Name)
		}
	}
	return names
}

// PermissionCodes flattens user -> active roles -> permissions into a set of codes
func (u *User) PermissionCodes() []string {
	seen := make(map[string]struct{})
	codes := make([]string, 0)
	for _, role := range u.Roles {
		if !role.Active {
			continue
		}
		for _, perm := range role.Permissions {
			if _, ok := seen[perm.Code]; ok {
				continue
			}
			seen[perm.Code] = struct{}{}
			codes = append(codes, perm.Code)
		}
	}
	return codes
}
