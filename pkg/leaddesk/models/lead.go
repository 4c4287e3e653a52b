package models

import "time"

// Default lead statuses
const (
	StatusNew       = "New"
	StatusConverted = "Converted"
	StatusDeposited = "Deposited"
)

// Lead is a prospective client. A lead with IsConverted set is a retention client.
type Lead struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null" json:"last_name"`
	Email     string `gorm:"not null;index" json:"email"` // not unique: duplicates are rejected by a lookup before insert
	Phone     string `gorm:"index" json:"phone"`
	Country   string `json:"country"`

	Brand    string `json:"brand"`
	Source   string `gorm:"index" json:"source"`
	SourceID string `json:"source_id"`
	Funnel   string `json:"funnel"`
	Desk     string `json:"desk"`

	Status       string     `gorm:"not null;index" json:"status"`
	IsConverted  bool       `gorm:"not null;index" json:"is_converted"`
	ConvertedAt  *time.Time `json:"converted_at"`
	HasDeposited bool       `gorm:"not null" json:"has_deposited"`
	FTDDate      *time.Time `json:"ftd_date"`

	AssignedTo *uint `gorm:"index" json:"assigned_to"`
	APIKeyID   *uint `gorm:"index" json:"api_key_id"`

	Balance       float64 `gorm:"not null" json:"balance"`
	TotalDeposits float64 `gorm:"not null" json:"total_deposits"`

	// Relationships
	AssignedUser *User `gorm:"foreignKey:AssignedTo" json:"assigned_to_user,omitempty"`
}

// Activity types
const (
	ActivityCreation         = "creation"
	ActivityConversion       = "conversion"
	ActivityStatusChange     = "status_change"
	ActivityAssignment       = "assignment"
	ActivityAutoAssignment   = "auto_assignment"
	ActivityDeposit          = "deposit"
	ActivityDemotion         = "demotion"
	ActivityQuestionsUpdated = "questions_updated"
)

// LeadActivity is an append-only audit entry attached to a lead
type LeadActivity struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LeadID      uint      `gorm:"not null;index" json:"lead_id"`
	Type        string    `gorm:"not null;index" json:"type"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedByID *uint     `json:"created_by_id,omitempty"`
}

// Deposit records money added to a client's balance
type Deposit struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	LeadID      uint      `gorm:"not null;index" json:"lead_id"`
	Amount      float64   `gorm:"not null" json:"amount"`
	CreatedByID uint      `gorm:"not null" json:"created_by_id"`
}
