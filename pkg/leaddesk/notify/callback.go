// Package notify raises per-user notifications for leads arriving through
// API keys that have notifications enabled, and relays them to subscribers.
package notify

import (
	"fmt"

	"github.com/mikepea/leaddesk/pkg/leaddesk/logging"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// CallbackName is the name of the gorm create callback registered by RegisterCallback.
const CallbackName = "leaddesk:notify_lead"

// RegisterCallback installs an after-create hook on db that writes a
// LeadNotification for every new lead whose API key has notifications
// enabled: one for the assigned agent, or one per admin when unassigned.
// The rows are written in the same transaction as the lead. Failures are
// logged and never fail the lead insert.
func RegisterCallback(db *gorm.DB) error {
	return db.Callback().Create().After("gorm:create").Register(CallbackName, notifyLeads)
}

func notifyLeads(tx *gorm.DB) {
	if tx.Error != nil || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "leads" {
		return
	}

	var leads []models.Lead
	switch dest := tx.Statement.Dest.(type) {
	case *models.Lead:
		leads = []models.Lead{*dest}
	case []models.Lead:
		leads = dest
	case *[]models.Lead:
		leads = *dest
	default:
		return
	}

	// Each lead's rows go through a savepoint so a failure leaves the
	// surrounding transaction usable on databases that abort on error.
	db := tx.Session(&gorm.Session{NewDB: true})
	for _, lead := range leads {
		err := db.Transaction(func(sp *gorm.DB) error {
			return notifyLead(sp, lead)
		})
		if err != nil {
			logging.LogError("lead_notification_failed", err, map[string]interface{}{"lead_id": lead.ID})
		}
	}
}

func notifyLead(db *gorm.DB, lead models.Lead) error {
	if lead.APIKeyID == nil || lead.ID == 0 {
		return nil
	}

	var key models.APIKey
	if err := db.Select("id", "enable_notifications").First(&key, *lead.APIKeyID).Error; err != nil {
		return fmt.Errorf("load api key: %w", err)
	}
	if !key.EnableNotifications {
		return nil
	}

	var recipients []uint
	if lead.AssignedTo != nil {
		recipients = []uint{*lead.AssignedTo}
	} else if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Order("id").Pluck("id", &recipients).Error; err != nil {
		return fmt.Errorf("load admins: %w", err)
	}
	if len(recipients) == 0 {
		return nil
	}

	message := fmt.Sprintf("New lead %s %s from %s", lead.FirstName, lead.LastName, lead.Source)
	notifications := make([]models.LeadNotification, len(recipients))
	for i, userID := range recipients {
		notifications[i] = models.LeadNotification{
			UserID:           userID,
			LeadID:           lead.ID,
			NotificationType: models.NotificationNewLead,
			Message:          message,
		}
	}
	return db.Create(&notifications).Error
}
