package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: User must be migrated first as other models reference it
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&APIKey{},
		&AssignmentRule{},
		&Lead{},
		&LeadActivity{},
		&Deposit{},
		&LeadStatus{},
		&LeadNotification{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
