package statuses

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Defaults are created at start-up and cannot be deleted
var Defaults = []models.LeadStatus{
	{Name: models.StatusNew, Color: "#3b82f6"},
	{Name: models.StatusConverted, Color: "#22c55e"},
	{Name: models.StatusDeposited, Color: "#a855f7"},
}

// Handler handles lead status catalogue requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new statuses handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// StatusResponse represents a status in API responses
type StatusResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	LeadCount int    `json:"lead_count"`
	IsDefault bool   `json:"is_default"`
}

// CreateStatusRequest represents the request to add a status
type CreateStatusRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Color string `json:"color" binding:"required,hexcolor"`
}

// Seed creates any missing default status.
func Seed(db *gorm.DB) error {
	for _, s := range Defaults {
		status := s
		if err := db.Where(models.LeadStatus{Name: status.Name}).FirstOrCreate(&status).Error; err != nil {
			return err
		}
	}
	return nil
}

func isDefault(name string) bool {
	for _, s := range Defaults {
		if s.Name == name {
			return true
		}
	}
	return false
}

// List returns every status with the number of leads using it
func (h *Handler) List(c *gin.Context) {
	type statusWithCount struct {
		ID        uint
		Name      string
		Color     string
		LeadCount int
	}

	var results []statusWithCount
	err := h.db.Table("lead_statuses").
		Select("lead_statuses.id, lead_statuses.name, lead_statuses.color, COUNT(leads.id) as lead_count").
		Joins("LEFT JOIN leads ON leads.status = lead_statuses.name").
		Group("lead_statuses.id").
		Order("lead_statuses.id").
		Find(&results).Error

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch statuses"})
		return
	}

	statuses := make([]StatusResponse, len(results))
	for i, r := range results {
		statuses[i] = StatusResponse{
			ID:        r.ID,
			Name:      r.Name,
			Color:     r.Color,
			LeadCount: r.LeadCount,
			IsDefault: isDefault(r.Name),
		}
	}

	c.JSON(http.StatusOK, statuses)
}

// Create adds a status to the catalogue (admin only)
func (h *Handler) Create(c *gin.Context) {
	var req CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
		return
	}

	var count int64
	h.db.Model(&models.LeadStatus{}).Where("name = ?", name).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Status already exists"})
		return
	}

	status := models.LeadStatus{Name: name, Color: strings.ToLower(req.Color)}
	if err := h.db.Create(&status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create status"})
		return
	}

	c.JSON(http.StatusCreated, StatusResponse{ID: status.ID, Name: status.Name, Color: status.Color})
}

// Delete removes an unused, non-default status (admin only)
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status ID"})
		return
	}

	var status models.LeadStatus
	if err := h.db.First(&status, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Status not found"})
		return
	}
	if isDefault(status.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Default statuses cannot be deleted"})
		return
	}

	var inUse int64
	h.db.Model(&models.Lead{}).Where("status = ?", status.Name).Count(&inUse)
	if inUse > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Status is in use by " + strconv.FormatInt(inUse, 10) + " leads"})
		return
	}

	if err := h.db.Delete(&status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status deleted"})
}

// RegisterRoutes registers status routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/statuses", h.List)

	admin := rg.Group("/statuses")
	admin.Use(auth.RequireAdmin())
	{
		admin.POST("", h.Create)
		admin.DELETE("/:id", h.Delete)
	}
}
