package models

import "time"

// AssignmentRule routes leads from a source and country to an agent.
// Among active rules for the same source and country, the highest priority wins.
type AssignmentRule struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	SourceName      string    `gorm:"not null;uniqueIndex:idx_assignment_rule" json:"source_name"`
	CountryCode     string    `gorm:"not null;size:2;uniqueIndex:idx_assignment_rule" json:"country_code"`
	AssignedAgentID uint      `gorm:"not null;uniqueIndex:idx_assignment_rule" json:"assigned_agent_id"`
	Priority        int       `gorm:"not null" json:"priority"`
	IsActive        bool      `gorm:"not null;index" json:"is_active"`

	// Relationships
	AssignedAgent User `gorm:"foreignKey:AssignedAgentID" json:"assigned_agent,omitempty"`
}
