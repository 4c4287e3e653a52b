package notify

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Handler serves the caller's own notifications
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new notifications handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// ListResponse holds the caller's notifications and unread count
type ListResponse struct {
	Notifications []models.LeadNotification `json:"notifications"`
	Unread        int64                     `json:"unread"`
}

// List returns the caller's notifications, newest first.
// ?unread=true restricts the list to unread ones.
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Limit(100)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	notifications := []models.LeadNotification{}
	if err := query.Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	var unread int64
	h.db.Model(&models.LeadNotification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&unread)

	c.JSON(http.StatusOK, ListResponse{Notifications: notifications, Unread: unread})
}

// MarkRead marks one of the caller's notifications as read
func (h *Handler) MarkRead(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	res := h.db.Model(&models.LeadNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllRead marks every notification of the caller as read
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	res := h.db.Model(&models.LeadNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": res.RowsAffected})
}

// RegisterRoutes registers notification routes on an authenticated group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.PUT("/read-all", h.MarkAllRead)
		notifications.PUT("/:id/read", h.MarkRead)
	}
}
