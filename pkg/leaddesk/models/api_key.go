package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey represents a third-party credential used to submit leads
type APIKey struct {
	ID                  uint           `gorm:"primarykey" json:"id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
	Name                string         `gorm:"not null" json:"name"`
	KeyHash             string         `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix           string         `gorm:"not null" json:"key_prefix"` // First few chars for identification
	SourcePrefix        string         `gorm:"not null;index" json:"source_prefix"`
	SourceID            string         `json:"source_id"` // Default source_id for leads submitted with this key
	IsActive            bool           `gorm:"not null" json:"is_active"`
	AllowedIPs          []string       `gorm:"serializer:json;type:text" json:"allowed_ips"`
	EnableNotifications bool           `gorm:"not null" json:"enable_notifications"`
	LastUsedAt          *time.Time     `json:"last_used_at"`
	CreatedByID         uint           `gorm:"not null" json:"created_by_id"`
}
