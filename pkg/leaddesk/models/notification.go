package models

import "time"

// NotificationNewLead is raised when a lead arrives through a key with notifications enabled
const NotificationNewLead = "new_lead"

// LeadNotification is a per-user alert about a lead
type LeadNotification struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	LeadID           uint       `gorm:"not null;index" json:"lead_id"`
	NotificationType string     `gorm:"not null" json:"notification_type"`
	Message          string     `gorm:"type:text" json:"message"`
	IsRead           bool       `gorm:"not null;index" json:"is_read"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at,omitempty"`
}
