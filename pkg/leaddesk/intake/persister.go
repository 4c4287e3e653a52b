package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/mikepea/leaddesk/pkg/leaddesk/apikeys"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Persister writes an accepted submission and its audit trail.
type Persister struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPersister creates a persister. now defaults to time.Now.
func NewPersister(db *gorm.DB, now func() time.Time) *Persister {
	if now == nil {
		now = time.Now
	}
	return &Persister{db: db, now: now}
}

// Persist inserts the lead, its creation or conversion activity, the
// auto_assignment activity when assignment is set, and then touches the key's
// last_used_at. Everything commits together or not at all.
func (p *Persister) Persist(ctx context.Context, key *models.APIKey, sub *Submission, assignment *Assignment) (*models.Lead, error) {
	convertedAt := sub.convertedAt()

	sourceID := string(sub.SourceID)
	if sourceID == "" {
		sourceID = key.SourceID
	}

	keyID := key.ID
	lead := models.Lead{
		FirstName:   sub.FirstName,
		LastName:    sub.LastName,
		Email:       sub.Email,
		Phone:       sub.Phone,
		Country:     sub.Country,
		Brand:       sub.Brand,
		Source:      key.SourcePrefix,
		SourceID:    sourceID,
		Funnel:      sub.Funnel,
		Desk:        sub.Desk,
		Status:      models.StatusNew,
		IsConverted: convertedAt != nil,
		ConvertedAt: convertedAt,
		APIKeyID:    &keyID,
	}
	if assignment != nil {
		agentID := assignment.AgentID
		lead.AssignedTo = &agentID
	}

	activity := models.LeadActivity{
		Type:        models.ActivityCreation,
		Description: fmt.Sprintf("Lead created via API (%s)", key.SourcePrefix),
	}
	if convertedAt != nil {
		activity = models.LeadActivity{
			Type:        models.ActivityConversion,
			Description: fmt.Sprintf("Lead created with FTD at %s via API (%s)", convertedAt.Format("2006-01-02T15:04:05.000Z"), key.SourcePrefix),
		}
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lead).Error; err != nil {
			return fmt.Errorf("insert lead: %w", err)
		}

		activity.LeadID = lead.ID
		if err := tx.Create(&activity).Error; err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}

		if assignment != nil {
			auto := models.LeadActivity{
				LeadID:      lead.ID,
				Type:        models.ActivityAutoAssignment,
				Description: assignment.Description(),
			}
			if err := tx.Create(&auto).Error; err != nil {
				return fmt.Errorf("insert assignment activity: %w", err)
			}
		}

		if err := apikeys.TouchLastUsed(tx, key.ID, p.now()); err != nil {
			return fmt.Errorf("touch api key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
