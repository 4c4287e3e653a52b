package intake

import (
	"time"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
)

// HumanDateLayout renders dates like "01 September 2025".
const HumanDateLayout = "02 January 2006"

// HumanDate formats t in UTC with HumanDateLayout.
func HumanDate(t time.Time) string {
	return t.UTC().Format(HumanDateLayout)
}

// humanDatePtr returns nil for a nil time so the field renders as JSON null.
func humanDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := HumanDate(*t)
	return &s
}

// SuccessEnvelope wraps a successful response.
type SuccessEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorBody is the error member of ErrorEnvelope.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorEnvelope wraps a failed response.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func success(data interface{}) SuccessEnvelope {
	return SuccessEnvelope{Success: true, Data: data}
}

func failure(e *Error) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorBody{Code: e.Code, Message: e.Message, Details: e.Details}}
}

// CreatedLead is the data returned after a successful submission.
type CreatedLead struct {
	ID          uint    `json:"id"`
	SourceID    *string `json:"source_id"`
	CreatedAt   string  `json:"created_at"`
	ConvertedAt *string `json:"converted_at"`
}

// LeadSummary is one row returned by the list endpoint.
type LeadSummary struct {
	ID           uint    `json:"id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	Phone        *string `json:"phone"`
	Country      *string `json:"country"`
	Status       string  `json:"status"`
	HasDeposited bool    `json:"has_deposited"`
	ConvertedAt  *string `json:"converted_at"`
	CreatedAt    string  `json:"created_at"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newCreatedLead(lead *models.Lead) CreatedLead {
	return CreatedLead{
		ID:          lead.ID,
		SourceID:    nullable(lead.SourceID),
		CreatedAt:   HumanDate(lead.CreatedAt),
		ConvertedAt: humanDatePtr(lead.ConvertedAt),
	}
}

func newLeadSummary(lead models.Lead) LeadSummary {
	return LeadSummary{
		ID:           lead.ID,
		FirstName:    lead.FirstName,
		LastName:     lead.LastName,
		Email:        lead.Email,
		Phone:        nullable(lead.Phone),
		Country:      nullable(lead.Country),
		Status:       lead.Status,
		HasDeposited: lead.HasDeposited,
		ConvertedAt:  humanDatePtr(lead.ConvertedAt),
		CreatedAt:    HumanDate(lead.CreatedAt),
	}
}
