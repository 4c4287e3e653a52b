// Package intake implements the third-party lead submission endpoint:
// API key authentication, duplicate detection, rule-based assignment and
// persistence with an audit trail.
package intake

import (
	"context"
	"strconv"
	"time"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service runs the intake stages in order, stopping at the first failure.
type Service struct {
	db        *gorm.DB
	auth      *Authenticator
	dedup     *Deduplicator
	resolver  *Resolver
	persister *Persister
}

// NewService wires every stage to db.
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:        db,
		auth:      NewAuthenticator(db),
		dedup:     NewDeduplicator(db),
		resolver:  NewResolver(db),
		persister: NewPersister(db, time.Now),
	}
}

// Authenticate delegates to the Authenticator stage.
func (s *Service) Authenticate(ctx context.Context, key, clientIP string) (*models.APIKey, error) {
	return s.auth.Authenticate(ctx, key, clientIP)
}

// Submit validates, deduplicates, assigns and stores a submission.
func (s *Service) Submit(ctx context.Context, key *models.APIKey, sub *Submission) (*models.Lead, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.dedup.Check(ctx, sub.Email, sub.Phone); err != nil {
		return nil, err
	}

	assignment, err := s.resolver.Resolve(ctx, key.SourcePrefix, sub.Country)
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"source": key.SourcePrefix, "country": sub.Country}
	if assignment != nil {
		fields["agent_id"] = assignment.AgentID
		fields["country_code"] = assignment.CountryCode
		logrus.WithFields(fields).Info("lead matched assignment rule")
	} else {
		logrus.WithFields(fields).Debug("no assignment rule matched")
	}

	lead, err := s.persister.Persist(ctx, key, sub, assignment)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"lead_id":    lead.ID,
		"api_key_id": key.ID,
		"source":     key.SourcePrefix,
		"assigned":   lead.AssignedTo != nil,
		"backdated":  lead.ConvertedAt != nil,
	}).Info("lead created via api")

	return lead, nil
}

// ListQuery holds the raw list filters. Unparseable values are ignored.
type ListQuery struct {
	Email  string
	Sort   string
	From   string
	To     string
	Limit  string
	Offset string
}

var summaryColumns = []string{
	"id", "first_name", "last_name", "email", "phone", "country",
	"status", "has_deposited", "converted_at", "created_at",
}

// List returns the leads submitted with key, filtered by q.
// Without a valid sort the order is unspecified.
func (s *Service) List(ctx context.Context, key *models.APIKey, q ListQuery) ([]models.Lead, error) {
	query := s.db.WithContext(ctx).Model(&models.Lead{}).
		Select(summaryColumns).
		Where("api_key_id = ?", key.ID)

	if q.Email != "" {
		query = query.Where("email = ?", q.Email)
	}
	if from, ok := ParseTimestamp(q.From); ok {
		query = query.Where("created_at >= ?", from)
	}
	if to, ok := ParseTimestamp(q.To); ok {
		query = query.Where("created_at <= ?", to)
	}

	switch q.Sort {
	case "asc":
		query = query.Order("created_at ASC")
	case "desc":
		query = query.Order("created_at DESC")
	}

	if limit, err := strconv.Atoi(q.Limit); err == nil && limit > 0 {
		query = query.Limit(limit)
		if offset, err := strconv.Atoi(q.Offset); err == nil && offset > 0 {
			query = query.Offset(offset)
		}
	}

	logrus.WithFields(logrus.Fields{
		"api_key_id": key.ID,
		"from":       q.From,
		"to":         q.To,
		"limit":      q.Limit,
		"offset":     q.Offset,
	}).Debug("fetching leads")

	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}
