package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikepea/leaddesk/pkg/leaddesk/country"
	"github.com/mikepea/leaddesk/pkg/leaddesk/rules"
	"gorm.io/gorm"
)

const unknownAgent = "Unknown Agent"

// Assignment is the outcome of rule resolution for one submission.
type Assignment struct {
	AgentID     uint
	AgentName   string
	Source      string
	CountryCode string
}

// Description is the auto_assignment activity text.
func (a *Assignment) Description() string {
	return fmt.Sprintf("Automatically assigned to %s based on source '%s' and country '%s'", a.AgentName, a.Source, a.CountryCode)
}

// Resolver picks the agent for a submission from the assignment rules.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a resolver over the assignment rules table.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the winning assignment for sourcePrefix and a free-text
// country, or nil when the country is empty or no active rule matches.
func (r *Resolver) Resolve(ctx context.Context, sourcePrefix, countryText string) (*Assignment, error) {
	if strings.TrimSpace(countryText) == "" {
		return nil, nil
	}

	code := country.Normalize(countryText)
	rule, err := rules.Winner(ctx, r.db, sourcePrefix, code)
	if err != nil {
		return nil, fmt.Errorf("resolve assignment rule: %w", err)
	}
	if rule == nil {
		return nil, nil
	}

	name := rule.AssignedAgent.FullName
	if name == "" {
		name = unknownAgent
	}
	return &Assignment{
		AgentID:     rule.AssignedAgentID,
		AgentName:   name,
		Source:      rule.SourceName,
		CountryCode: rule.CountryCode,
	}, nil
}
