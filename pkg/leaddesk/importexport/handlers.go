package importexport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/hierarchy"
	"github.com/mikepea/leaddesk/pkg/leaddesk/intake"
	"github.com/mikepea/leaddesk/pkg/leaddesk/leads"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Handler handles lead import/export requests
type Handler struct {
	db  *gorm.DB
	dir *hierarchy.Directory
}

// NewHandler creates a new import/export handler
func NewHandler(db *gorm.DB, dir *hierarchy.Directory) *Handler {
	return &Handler{db: db, dir: dir}
}

// ImportLead is one row of an import. It uses the API submission fields plus
// an optional original creation time.
type ImportLead struct {
	intake.Submission
	CreatedAt string `json:"createdAt"`
}

// ImportRequest represents an import request
type ImportRequest struct {
	Leads      []ImportLead `json:"leads" binding:"required"`
	AssignedTo *uint        `json:"assigned_to"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ExportLead represents a lead for export. Dates are human readable.
type ExportLead struct {
	ID            uint    `json:"id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Country       string  `json:"country"`
	Brand         string  `json:"brand"`
	Source        string  `json:"source"`
	SourceID      string  `json:"source_id"`
	Funnel        string  `json:"funnel"`
	Desk          string  `json:"desk"`
	Status        string  `json:"status"`
	IsConverted   bool    `json:"is_converted"`
	HasDeposited  bool    `json:"has_deposited"`
	TotalDeposits float64 `json:"total_deposits"`
	AssignedTo    string  `json:"assigned_to"`
	ConvertedAt   string  `json:"converted_at"`
	FTDDate       string  `json:"ftd_date"`
	CreatedAt     string  `json:"created_at"`
}

func rowError(i int, message string) string {
	return "lead " + strconv.Itoa(i) + ": " + message
}

// reason returns the caller-facing message of an intake error.
func reason(err error) string {
	var e *intake.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Import creates leads from JSON rows. Invalid rows and rows colliding with
// an existing lead on email or phone are skipped and reported.
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.AssignedTo != nil {
		scope, ok := leads.ViewerScope(c, h.dir)
		if !ok {
			return
		}
		var agent models.User
		if err := h.db.First(&agent, *req.AssignedTo).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Agent not found"})
			return
		}
		if !hierarchy.OwnsLeads(agent.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Leads cannot be assigned to an admin"})
			return
		}
		if !scope.CanAssignTo(*req.AssignedTo) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Cannot assign leads to this user"})
			return
		}
	}

	dedup := intake.NewDeduplicator(h.db)
	result := ImportResult{
		Errors: []string{},
	}

	for i, row := range req.Leads {
		if err := row.Validate(); err != nil {
			result.Errors = append(result.Errors, rowError(i, reason(err)))
			result.Skipped++
			continue
		}

		if err := dedup.Check(c.Request.Context(), row.Email, row.Phone); err != nil {
			result.Errors = append(result.Errors, rowError(i, reason(err)))
			result.Skipped++
			continue
		}

		lead := models.Lead{
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			Email:      row.Email,
			Phone:      row.Phone,
			Country:    row.Country,
			Brand:      row.Brand,
			Source:     row.Source,
			SourceID:   string(row.SourceID),
			Funnel:     row.Funnel,
			Desk:       row.Desk,
			Status:     models.StatusNew,
			AssignedTo: req.AssignedTo,
		}
		if createdAt, ok := intake.ParseTimestamp(row.CreatedAt); ok {
			lead.CreatedAt = createdAt
		}
		if convertedAt, ok := intake.ParseTimestamp(row.ConvertedAt); ok {
			lead.IsConverted = true
			lead.ConvertedAt = &convertedAt
		}

		err := h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&lead).Error; err != nil {
				return err
			}
			return tx.Create(&models.LeadActivity{
				LeadID:      lead.ID,
				Type:        models.ActivityCreation,
				Description: "Lead imported",
				CreatedByID: &userID,
			}).Error
		})
		if err != nil {
			result.Errors = append(result.Errors, rowError(i, err.Error()))
			result.Skipped++
			continue
		}

		result.Imported++
	}

	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	c.JSON(http.StatusOK, result)
}

// Export returns every lead visible to the caller, optionally limited to a view
func (h *Handler) Export(c *gin.Context) {
	view, err := leads.ViewFilter(c.Query("view"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid view"})
		return
	}

	scope, ok := leads.ViewerScope(c, h.dir)
	if !ok {
		return
	}

	var rows []models.Lead
	if err := h.db.Scopes(scope.Apply("assigned_to"), view).
		Preload("AssignedUser").
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
		return
	}

	exported := make([]ExportLead, len(rows))
	for i, lead := range rows {
		exported[i] = toExport(lead)
	}

	c.Header("Content-Disposition", "attachment; filename=leads.json")
	c.JSON(http.StatusOK, exported)
}

func toExport(lead models.Lead) ExportLead {
	out := ExportLead{
		ID:            lead.ID,
		FirstName:     lead.FirstName,
		LastName:      lead.LastName,
		Email:         lead.Email,
		Phone:         lead.Phone,
		Country:       lead.Country,
		Brand:         lead.Brand,
		Source:        lead.Source,
		SourceID:      lead.SourceID,
		Funnel:        lead.Funnel,
		Desk:          lead.Desk,
		Status:        lead.Status,
		IsConverted:   lead.IsConverted,
		HasDeposited:  lead.HasDeposited,
		TotalDeposits: lead.TotalDeposits,
		CreatedAt:     intake.HumanDate(lead.CreatedAt),
	}
	if lead.AssignedUser != nil {
		out.AssignedTo = strings.TrimSpace(lead.AssignedUser.FullName)
	}
	if lead.ConvertedAt != nil {
		out.ConvertedAt = intake.HumanDate(*lead.ConvertedAt)
	}
	if lead.FTDDate != nil {
		out.FTDDate = intake.HumanDate(*lead.FTDDate)
	}
	return out
}

// RegisterRoutes registers import/export routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leads/export", h.Export)
	rg.POST("/leads/import", auth.RequireRole(models.RoleAdmin, models.RoleDesk, models.RoleManager), h.Import)
}
