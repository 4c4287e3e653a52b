package rules

import (
	"context"
	"errors"
	"strings"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Winner returns the active rule that routes leads from source in countryCode,
// or nil when no rule matches. The country comparison ignores case.
// Higher priority wins; equal priorities go to the oldest rule, then the lowest id.
func Winner(ctx context.Context, db *gorm.DB, source, countryCode string) (*models.AssignmentRule, error) {
	var rule models.AssignmentRule
	err := db.WithContext(ctx).
		Preload("AssignedAgent").
		Where("source_name = ? AND UPPER(country_code) = ? AND is_active = ?", source, strings.ToUpper(countryCode), true).
		Order("priority DESC").
		Order("created_at ASC").
		Order("id ASC").
		Take(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
