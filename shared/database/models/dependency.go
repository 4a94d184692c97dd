package models

import "time"

// MaxDependencyLevel is the depth of the institutions tree:
// secretariat, undersecretariat, directorate
const MaxDependencyLevel = 3

// DependencyType classifies institutions, e.g. "Secretaría" or "Dirección"
type DependencyType struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100;uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dependency is a government institution. Users belong to one.
type Dependency struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	TypeID    uint      `json:"type_id" gorm:"not null;index"`
	ParentID  *uint     `json:"parent_id" gorm:"index"`
	Level     int       `json:"level" gorm:"not null;index"`
	SortOrder int       `json:"sort_order" gorm:"not null;default:0"`
	Active    bool      `json:"active" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Type     *DependencyType `json:"type,omitempty" gorm:"foreignKey:TypeID"`
	Parent   *Dependency     `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Dependency    `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}
