package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a staff member of the back-office
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	FullName     string         `gorm:"not null" json:"full_name"`
	Role         Role           `gorm:"not null;index" json:"role"`
	ManagerID    *uint          `gorm:"index" json:"manager_id"`

	// Relationships
	Manager *User `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
}
