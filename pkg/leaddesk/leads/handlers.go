// Package leads serves the staff lead desk: listing, editing, assignment and
// the lead/client lifecycle, always restricted to the caller's hierarchy scope.
package leads

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/hierarchy"
	"github.com/mikepea/leaddesk/pkg/leaddesk/intake"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Handler handles lead desk requests
type Handler struct {
	db  *gorm.DB
	dir *hierarchy.Directory
}

// NewHandler creates a new leads handler
func NewHandler(db *gorm.DB, dir *hierarchy.Directory) *Handler {
	return &Handler{db: db, dir: dir}
}

// LeadResponse represents a lead in API responses
type LeadResponse struct {
	ID             uint    `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Country        string  `json:"country"`
	Brand          string  `json:"brand"`
	Source         string  `json:"source"`
	SourceID       string  `json:"source_id"`
	Funnel         string  `json:"funnel"`
	Desk           string  `json:"desk"`
	Status         string  `json:"status"`
	IsConverted    bool    `json:"is_converted"`
	ConvertedAt    *string `json:"converted_at"`
	HasDeposited   bool    `json:"has_deposited"`
	FTDDate        *string `json:"ftd_date"`
	Balance        float64 `json:"balance"`
	TotalDeposits  float64 `json:"total_deposits"`
	AssignedTo     *uint   `json:"assigned_to"`
	AssignedToName string  `json:"assigned_to_name,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// ListResponse is a page of leads
type ListResponse struct {
	Leads   []LeadResponse `json:"leads"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// CreateLeadRequest represents a lead entered by staff
type CreateLeadRequest struct {
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	Country    string `json:"country"`
	Brand      string `json:"brand"`
	Source     string `json:"source"`
	Funnel     string `json:"funnel"`
	Desk       string `json:"desk"`
	AssignedTo *uint  `json:"assigned_to"`
}

// StatusRequest changes a lead's status
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AssignRequest hands a lead to an agent. A null agent_id unassigns it.
type AssignRequest struct {
	AgentID *uint `json:"agent_id"`
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func isoTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoTime(*t)
	return &s
}

func leadToResponse(lead models.Lead) LeadResponse {
	resp := LeadResponse{
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
		ConvertedAt:   isoTimePtr(lead.ConvertedAt),
		HasDeposited:  lead.HasDeposited,
		FTDDate:       isoTimePtr(lead.FTDDate),
		Balance:       lead.Balance,
		TotalDeposits: lead.TotalDeposits,
		AssignedTo:    lead.AssignedTo,
		CreatedAt:     isoTime(lead.CreatedAt),
		UpdatedAt:     isoTime(lead.UpdatedAt),
	}
	if lead.AssignedUser != nil {
		resp.AssignedToName = lead.AssignedUser.FullName
	}
	return resp
}

// ViewFilter maps the view query parameter to a converted-state filter.
// An empty view matches every lead.
func ViewFilter(view string) (func(*gorm.DB) *gorm.DB, error) {
	switch view {
	case "":
		return func(db *gorm.DB) *gorm.DB { return db }, nil
	case "sales":
		return func(db *gorm.DB) *gorm.DB { return db.Where("is_converted = ?", false) }, nil
	case "retention":
		return func(db *gorm.DB) *gorm.DB { return db.Where("is_converted = ?", true) }, nil
	}
	return nil, fmt.Errorf("unknown view %q", view)
}

// ViewerScope resolves the caller's hierarchy scope, writing the error
// response itself when it cannot.
func ViewerScope(c *gin.Context, dir *hierarchy.Directory) (hierarchy.Scope, bool) {
	userID, _ := auth.GetUserID(c)
	scope, err := dir.ScopeFor(c.Request.Context(), userID)
	if errors.Is(err, hierarchy.ErrUnknownViewer) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown user"})
		return hierarchy.Scope{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load hierarchy"})
		return hierarchy.Scope{}, false
	}
	return scope, true
}

// loadLead fetches the lead named by the :id parameter if the caller may see it.
// Leads outside the scope are reported as not found.
func (h *Handler) loadLead(c *gin.Context) (models.Lead, hierarchy.Scope, bool) {
	var lead models.Lead

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead ID"})
		return lead, hierarchy.Scope{}, false
	}

	scope, ok := ViewerScope(c, h.dir)
	if !ok {
		return lead, scope, false
	}

	if err := h.db.Preload("AssignedUser").First(&lead, id).Error; err != nil || !scope.Allows(lead.AssignedTo) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return lead, scope, false
	}
	return lead, scope, true
}

// checkAssignee verifies that the caller may hand leads to agentID and
// returns the agent's profile.
func (h *Handler) checkAssignee(c *gin.Context, scope hierarchy.Scope, agentID uint) (models.User, bool) {
	var agent models.User
	if !scope.CanAssign() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return agent, false
	}
	if err := h.db.First(&agent, agentID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Agent not found"})
		return agent, false
	}
	if !hierarchy.OwnsLeads(agent.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Leads cannot be assigned to an admin"})
		return agent, false
	}
	if !scope.CanAssignTo(agentID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot assign leads to this user"})
		return agent, false
	}
	return agent, true
}

// reload reads a lead afresh with its owner. Reading into a new value keeps a
// stale AssignedUser from surviving an unassignment.
func (h *Handler) reload(id uint) models.Lead {
	var lead models.Lead
	h.db.Preload("AssignedUser").First(&lead, id)
	return lead
}

func (h *Handler) statusExists(name string) bool {
	var count int64
	h.db.Model(&models.LeadStatus{}).Where("name = ?", name).Count(&count)
	return count > 0
}

func actorID(c *gin.Context) *uint {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return nil
	}
	return &userID
}

// List returns a page of the leads visible to the caller
func (h *Handler) List(c *gin.Context) {
	view, err := ViewFilter(c.Query("view"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid view"})
		return
	}

	scope, ok := ViewerScope(c, h.dir)
	if !ok {
		return
	}

	query := h.db.Model(&models.Lead{}).Scopes(scope.Apply("assigned_to"), view)

	// Optional filters
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if country := c.Query("country"); country != "" {
		query = query.Where("country = ?", country)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if assigned := c.Query("assigned_to"); assigned != "" {
		if assigned == "none" {
			query = query.Where("assigned_to IS NULL")
		} else if id, err := strconv.ParseUint(assigned, 10, 32); err == nil {
			query = query.Where("assigned_to = ?", id)
		}
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		like := "%" + search + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR phone LIKE ?", like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	var leads []models.Lead
	err = query.Preload("AssignedUser").
		Order("created_at DESC").Order("id DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&leads).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
		return
	}

	responses := make([]LeadResponse, len(leads))
	for i, lead := range leads {
		responses[i] = leadToResponse(lead)
	}

	c.JSON(http.StatusOK, ListResponse{Leads: responses, Total: total, Page: page, PerPage: perPage})
}

// Get returns a single lead
func (h *Handler) Get(c *gin.Context) {
	lead, _, ok := h.loadLead(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, leadToResponse(lead))
}

// Activities returns a lead's audit trail, newest first
func (h *Handler) Activities(c *gin.Context) {
	lead, _, ok := h.loadLead(c)
	if !ok {
		return
	}

	var activities []models.LeadActivity
	if err := h.db.Where("lead_id = ?", lead.ID).Order("created_at DESC").Order("id DESC").Find(&activities).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activities"})
		return
	}
	c.JSON(http.StatusOK, activities)
}

// Create adds a lead entered by staff. Email and phone collisions are
// rejected the same way as API submissions. Agents own the leads they create.
func (h *Handler) Create(c *gin.Context) {
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scope, ok := ViewerScope(c, h.dir)
	if !ok {
		return
	}

	if req.AssignedTo != nil {
		if _, ok := h.checkAssignee(c, scope, *req.AssignedTo); !ok {
			return
		}
	} else if scope.Role == models.RoleAgent {
		req.AssignedTo = actorID(c)
	}

	email := strings.TrimSpace(req.Email)
	phone := strings.TrimSpace(req.Phone)
	if err := intake.NewDeduplicator(h.db).Check(c.Request.Context(), email, phone); err != nil {
		var dup *intake.Error
		if errors.As(err, &dup) {
			c.JSON(dup.Status, gin.H{"error": dup.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check duplicates"})
		return
	}

	lead := models.Lead{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      email,
		Phone:      phone,
		Country:    req.Country,
		Brand:      req.Brand,
		Source:     req.Source,
		Funnel:     req.Funnel,
		Desk:       req.Desk,
		Status:     models.StatusNew,
		AssignedTo: req.AssignedTo,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lead).Error; err != nil {
			return err
		}
		return tx.Create(&models.LeadActivity{
			LeadID:      lead.ID,
			Type:        models.ActivityCreation,
			Description: "Lead created manually",
			CreatedByID: actorID(c),
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create lead"})
		return
	}

	lead = h.reload(lead.ID)
	c.JSON(http.StatusCreated, leadToResponse(lead))
}

// UpdateStatus changes a lead's status and records the change
func (h *Handler) UpdateStatus(c *gin.Context) {
	lead, _, ok := h.loadLead(c)
	if !ok {
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.statusExists(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}
	if req.Status == lead.Status {
		c.JSON(http.StatusOK, leadToResponse(lead))
		return
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		return changeStatus(tx, &lead, req.Status, actorID(c))
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	lead = h.reload(lead.ID)
	c.JSON(http.StatusOK, leadToResponse(lead))
}

// Assign hands a lead to an agent within the caller's scope
func (h *Handler) Assign(c *gin.Context) {
	lead, scope, ok := h.loadLead(c)
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var agent *models.User
	if req.AgentID != nil {
		a, ok := h.checkAssignee(c, scope, *req.AgentID)
		if !ok {
			return
		}
		agent = &a
	} else if !scope.CanAssign() || !scope.IncludeUnassigned {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		return assign(tx, &lead, agent, "Assigned to %s", actorID(c))
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign lead"})
		return
	}

	lead = h.reload(lead.ID)
	c.JSON(http.StatusOK, leadToResponse(lead))
}

// changeStatus updates lead in tx and appends a status_change activity.
func changeStatus(tx *gorm.DB, lead *models.Lead, status string, by *uint) error {
	previous := lead.Status
	if err := tx.Model(lead).Omit(clause.Associations).Update("status", status).Error; err != nil {
		return err
	}
	return tx.Create(&models.LeadActivity{
		LeadID:      lead.ID,
		Type:        models.ActivityStatusChange,
		Description: fmt.Sprintf("Status changed from %s to %s", previous, status),
		CreatedByID: by,
	}).Error
}

// assign sets the owner of lead in tx and appends an assignment activity.
// format receives the agent's name; a nil agent unassigns.
func assign(tx *gorm.DB, lead *models.Lead, agent *models.User, format string, by *uint) error {
	var agentID *uint
	description := "Unassigned"
	if agent != nil {
		id := agent.ID
		agentID = &id
		description = fmt.Sprintf(format, agent.FullName)
	}
	if err := tx.Model(lead).Omit(clause.Associations).Update("assigned_to", agentID).Error; err != nil {
		return err
	}
	lead.AssignedTo = agentID
	lead.AssignedUser = agent
	return tx.Create(&models.LeadActivity{
		LeadID:      lead.ID,
		Type:        models.ActivityAssignment,
		Description: description,
		CreatedByID: by,
	}).Error
}

// RegisterRoutes registers lead routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	leads := rg.Group("/leads")
	{
		leads.GET("", h.List)
		leads.POST("", h.Create)
		leads.POST("/distribute", h.Distribute)
		leads.POST("/bulk/status", h.BulkStatus)
		leads.POST("/bulk/assign", h.BulkAssign)
		leads.POST("/bulk/delete", auth.RequireAdmin(), h.BulkDelete)
		leads.GET("/:id", h.Get)
		leads.GET("/:id/activities", h.Activities)
		leads.PUT("/:id/status", h.UpdateStatus)
		leads.PUT("/:id/assign", h.Assign)
		leads.POST("/:id/promote", h.Promote)
		leads.POST("/:id/demote", h.Demote)
		leads.GET("/:id/deposits", h.ListDeposits)
		leads.POST("/:id/deposits", h.AddDeposit)
	}
}
