package models

import "time"

// LeadStatus is an entry in the status catalogue shown to staff
type LeadStatus struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Color     string    `gorm:"not null" json:"color"`
}
