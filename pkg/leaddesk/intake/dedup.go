package intake

import (
	"context"
	"errors"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Deduplicator rejects submissions that collide with an existing lead.
//
// The check runs outside the insert transaction, so two concurrent
// submissions with the same email can both pass. Leads carry no unique
// index on email or phone.
type Deduplicator struct {
	db *gorm.DB
}

// NewDeduplicator creates a deduplicator over the leads table.
func NewDeduplicator(db *gorm.DB) *Deduplicator {
	return &Deduplicator{db: db}
}

// Check returns ErrDuplicateEmail, ErrDuplicatePhone or ErrDuplicateLead when
// a lead already has the email or (when given) the phone. Email wins when
// both collide.
func (d *Deduplicator) Check(ctx context.Context, email, phone string) error {
	query := d.db.WithContext(ctx).Model(&models.Lead{}).Select("id", "email", "phone")
	if phone != "" {
		query = query.Where("email = ? OR phone = ?", email, phone)
	} else {
		query = query.Where("email = ?", email)
	}

	var existing models.Lead
	err := query.Clauses(clause.OrderBy{
		Expression: clause.Expr{
			SQL:                "CASE WHEN email = ? THEN 0 ELSE 1 END, id",
			Vars:               []interface{}{email},
			WithoutParentheses: true,
		},
	}).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case existing.Email == email:
		return ErrDuplicateEmail
	case phone != "" && existing.Phone == phone:
		return ErrDuplicatePhone
	}
	return ErrDuplicateLead
}
