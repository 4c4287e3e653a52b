package rules

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/country"
	"github.com/mikepea/leaddesk/pkg/leaddesk/hierarchy"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Handler handles assignment rule requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new rules handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RuleRequest is the body for creating or replacing a rule
type RuleRequest struct {
	SourceName      string `json:"source_name" binding:"required"`
	CountryCode     string `json:"country_code" binding:"required,countrycode"`
	AssignedAgentID uint   `json:"assigned_agent_id" binding:"required"`
	Priority        int    `json:"priority"`
}

// RuleResponse represents a rule in responses
type RuleResponse struct {
	ID              uint   `json:"id"`
	SourceName      string `json:"source_name"`
	CountryCode     string `json:"country_code"`
	AssignedAgentID uint   `json:"assigned_agent_id"`
	AssignedAgent   string `json:"assigned_agent_name"`
	Priority        int    `json:"priority"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toResponse(rule models.AssignmentRule) RuleResponse {
	return RuleResponse{
		ID:              rule.ID,
		SourceName:      rule.SourceName,
		CountryCode:     rule.CountryCode,
		AssignedAgentID: rule.AssignedAgentID,
		AssignedAgent:   rule.AssignedAgent.FullName,
		Priority:        rule.Priority,
		IsActive:        rule.IsActive,
		CreatedAt:       rule.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       rule.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// validate normalises the request in place and checks the target agent.
// excludeID skips the rule being edited in the duplicate check.
func (h *Handler) validate(c *gin.Context, req *RuleRequest, excludeID uint) bool {
	req.SourceName = strings.TrimSpace(req.SourceName)
	req.CountryCode = country.Normalize(req.CountryCode)
	if req.SourceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source name is required"})
		return false
	}

	var agent models.User
	if err := h.db.First(&agent, req.AssignedAgentID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Assigned agent not found"})
		return false
	}
	if !hierarchy.OwnsLeads(agent.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Leads cannot be routed to an admin"})
		return false
	}

	query := h.db.Model(&models.AssignmentRule{}).
		Where("source_name = ? AND country_code = ? AND assigned_agent_id = ?", req.SourceName, req.CountryCode, req.AssignedAgentID)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	query.Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A rule with this source, country, and agent already exists"})
		return false
	}
	return true
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule ID"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) load(c *gin.Context) (*models.AssignmentRule, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	var rule models.AssignmentRule
	if err := h.db.First(&rule, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return nil, false
	}
	return &rule, true
}

func (h *Handler) respond(c *gin.Context, status int, id uint) {
	var rule models.AssignmentRule
	if err := h.db.Preload("AssignedAgent").First(&rule, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load rule"})
		return
	}
	c.JSON(status, toResponse(rule))
}

// List returns rules ordered by priority, newest first within a priority
func (h *Handler) List(c *gin.Context) {
	query := h.db.Preload("AssignedAgent").Order("priority DESC").Order("created_at DESC")
	if source := c.Query("source"); source != "" {
		query = query.Where("source_name = ?", source)
	}

	var rules []models.AssignmentRule
	if err := query.Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch assignment rules"})
		return
	}

	responses := make([]RuleResponse, len(rules))
	for i, r := range rules {
		responses[i] = toResponse(r)
	}
	c.JSON(http.StatusOK, responses)
}

// Create adds a new active rule
func (h *Handler) Create(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.validate(c, &req, 0) {
		return
	}

	rule := models.AssignmentRule{
		SourceName:      req.SourceName,
		CountryCode:     req.CountryCode,
		AssignedAgentID: req.AssignedAgentID,
		Priority:        req.Priority,
		IsActive:        true,
	}
	if err := h.db.Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save assignment rule"})
		return
	}

	h.respond(c, http.StatusCreated, rule.ID)
}

// Update replaces the routing fields of a rule
func (h *Handler) Update(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.validate(c, &req, rule.ID) {
		return
	}

	err := h.db.Model(rule).Updates(map[string]interface{}{
		"source_name":       req.SourceName,
		"country_code":      req.CountryCode,
		"assigned_agent_id": req.AssignedAgentID,
		"priority":          req.Priority,
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save assignment rule"})
		return
	}

	h.respond(c, http.StatusOK, rule.ID)
}

// Toggle flips is_active
func (h *Handler) Toggle(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}

	if err := h.db.Model(rule).Update("is_active", !rule.IsActive).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule status"})
		return
	}

	h.respond(c, http.StatusOK, rule.ID)
}

// Delete removes a rule
func (h *Handler) Delete(c *gin.Context) {
	rule, ok := h.load(c)
	if !ok {
		return
	}

	if err := h.db.Delete(rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted"})
}

// RegisterRoutes registers rule routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/rules", h.List)
	rg.POST("/rules", h.Create)
	rg.PUT("/rules/:id", h.Update)
	rg.POST("/rules/:id/toggle", h.Toggle)
	rg.DELETE("/rules/:id", h.Delete)
}
