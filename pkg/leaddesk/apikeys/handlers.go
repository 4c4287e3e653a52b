package apikeys

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Handler handles API key requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// APIKeyResponse represents an API key in responses
type APIKeyResponse struct {
	ID                  uint       `json:"id"`
	Name                string     `json:"name"`
	KeyPrefix           string     `json:"key_prefix"`
	SourcePrefix        string     `json:"source_prefix"`
	SourceID            string     `json:"source_id"`
	IsActive            bool       `json:"is_active"`
	AllowedIPs          []string   `json:"allowed_ips"`
	EnableNotifications bool       `json:"enable_notifications"`
	LastUsedAt          *time.Time `json:"last_used_at"`
	CreatedAt           time.Time  `json:"created_at"`
}

// CreateAPIKeyRequest represents a request to create an API key
type CreateAPIKeyRequest struct {
	Name                string   `json:"name" binding:"required"`
	SourcePrefix        string   `json:"source_prefix" binding:"required"`
	SourceID            string   `json:"source_id"`
	AllowedIPs          []string `json:"allowed_ips" binding:"omitempty,dive,ip"`
	EnableNotifications bool     `json:"enable_notifications"`
}

// CreateAPIKeyResponse includes the full key (only shown once)
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// UpdateAPIKeyRequest represents a partial update of an API key
type UpdateAPIKeyRequest struct {
	Name                *string   `json:"name"`
	SourceID            *string   `json:"source_id"`
	AllowedIPs          *[]string `json:"allowed_ips" binding:"omitempty,dive,ip"`
	EnableNotifications *bool     `json:"enable_notifications"`
	IsActive            *bool     `json:"is_active"`
}

func toResponse(key models.APIKey) APIKeyResponse {
	ips := key.AllowedIPs
	if ips == nil {
		ips = []string{}
	}
	return APIKeyResponse{
		ID:                  key.ID,
		Name:                key.Name,
		KeyPrefix:           key.KeyPrefix,
		SourcePrefix:        key.SourcePrefix,
		SourceID:            key.SourceID,
		IsActive:            key.IsActive,
		AllowedIPs:          ips,
		EnableNotifications: key.EnableNotifications,
		LastUsedAt:          key.LastUsedAt,
		CreatedAt:           key.CreatedAt,
	}
}

func cleanIPs(ips []string) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		if ip = strings.TrimSpace(ip); ip != "" {
			out = append(out, ip)
		}
	}
	return out
}

// Create creates a new API key
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	sourcePrefix := strings.TrimSpace(req.SourcePrefix)
	if name == "" || sourcePrefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and source prefix are required"})
		return
	}

	key, err := generateAPIKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	apiKey := models.APIKey{
		Name:                name,
		KeyHash:             HashKey(key),
		KeyPrefix:           key[:KeyPrefixLength],
		SourcePrefix:        sourcePrefix,
		SourceID:            strings.TrimSpace(req.SourceID),
		IsActive:            true,
		AllowedIPs:          cleanIPs(req.AllowedIPs),
		EnableNotifications: req.EnableNotifications,
		CreatedByID:         userID,
	}

	if err := h.db.Create(&apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}

	// Return the full key - this is the only time it's visible
	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: toResponse(apiKey),
		Key:            key,
	})
}

// List returns all API keys, newest first
func (h *Handler) List(c *gin.Context) {
	var apiKeys []models.APIKey
	if err := h.db.Order("created_at DESC").Order("id DESC").Find(&apiKeys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	responses := make([]APIKeyResponse, len(apiKeys))
	for i, key := range apiKeys {
		responses[i] = toResponse(key)
	}

	c.JSON(http.StatusOK, responses)
}

func (h *Handler) load(c *gin.Context) (*models.APIKey, bool) {
	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid API key ID"})
		return nil, false
	}

	var apiKey models.APIKey
	if err := h.db.First(&apiKey, keyID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return nil, false
	}
	return &apiKey, true
}

// Update changes the mutable settings of an API key
func (h *Handler) Update(c *gin.Context) {
	apiKey, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if req.SourceID != nil {
		updates["source_id"] = strings.TrimSpace(*req.SourceID)
	}
	if req.EnableNotifications != nil {
		updates["enable_notifications"] = *req.EnableNotifications
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.AllowedIPs != nil {
		apiKey.AllowedIPs = cleanIPs(*req.AllowedIPs)
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(apiKey).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.AllowedIPs != nil {
			// Serialized columns go through Select so an empty list is written too.
			return tx.Model(apiKey).Select("allowed_ips").Updates(models.APIKey{AllowedIPs: apiKey.AllowedIPs}).Error
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update API key"})
		return
	}

	h.db.First(apiKey, apiKey.ID)
	c.JSON(http.StatusOK, toResponse(*apiKey))
}

// Delete deletes an API key
func (h *Handler) Delete(c *gin.Context) {
	apiKey, ok := h.load(c)
	if !ok {
		return
	}

	// Soft delete
	if err := h.db.Delete(apiKey).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete API key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}

// RegisterRoutes registers API key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/api-keys", h.Create)
	rg.GET("/api-keys", h.List)
	rg.GET("/api-keys/stats", h.Stats)
	rg.PUT("/api-keys/:id", h.Update)
	rg.DELETE("/api-keys/:id", h.Delete)
}
