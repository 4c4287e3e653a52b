package users

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/auth"
	"github.com/mikepea/leaddesk/pkg/leaddesk/hierarchy"
	"github.com/mikepea/leaddesk/pkg/leaddesk/logging"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Handler handles staff user management requests
type Handler struct {
	db  *gorm.DB
	dir *hierarchy.Directory
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB, dir *hierarchy.Directory) *Handler {
	return &Handler{db: db, dir: dir}
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID            uint        `json:"id"`
	Email         string      `json:"email"`
	FullName      string      `json:"full_name"`
	Role          models.Role `json:"role"`
	ManagerID     *uint       `json:"manager_id"`
	ManagerName   string      `json:"manager_name,omitempty"`
	CreatedAt     string      `json:"created_at"`
	AssignedLeads int64       `json:"assigned_leads"`
}

// CreateUserRequest represents the request to create a staff user
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FullName  string `json:"full_name" binding:"required"`
	Role      string `json:"role" binding:"required,role"`
	ManagerID *uint  `json:"manager_id"`
}

// UpdateUserRequest represents the request to update a user.
// A manager_id of 0 clears the manager.
type UpdateUserRequest struct {
	FullName  *string `json:"full_name"`
	Role      *string `json:"role" binding:"omitempty,role"`
	ManagerID *uint   `json:"manager_id"`
}

// TeamMemberStats is one row of the team dashboard
type TeamMemberStats struct {
	ID          uint        `json:"id"`
	FullName    string      `json:"full_name"`
	Role        models.Role `json:"role"`
	Leads       int64       `json:"leads"`
	Conversions int64       `json:"conversions"`
}

func (h *Handler) toResponse(user models.User) UserResponse {
	var leadCount int64
	h.db.Model(&models.Lead{}).Where("assigned_to = ?", user.ID).Count(&leadCount)

	resp := UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Role:          user.Role,
		ManagerID:     user.ManagerID,
		CreatedAt:     user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		AssignedLeads: leadCount,
	}
	if user.Manager != nil {
		resp.ManagerName = user.Manager.FullName
	}
	return resp
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return uint(id), true
}

// checkManager verifies that managerID exists and may manage a user of role.
// userID is zero for users that do not exist yet.
func (h *Handler) checkManager(c *gin.Context, userID uint, role models.Role, managerID uint) bool {
	var manager models.User
	if err := h.db.First(&manager, managerID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Manager not found"})
		return false
	}
	if !hierarchy.CanReportTo(role, manager.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A " + role.String() + " cannot report to a " + manager.Role.String()})
		return false
	}
	if userID == 0 {
		return true
	}

	tree, err := h.dir.Tree(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load hierarchy"})
		return false
	}
	if tree.WouldCycle(userID, managerID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Manager assignment would create a cycle"})
		return false
	}
	return true
}

// ListUsers returns all staff users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.Preload("Manager").Order("created_at DESC")

	// Optional search by email or name
	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR full_name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	// Optional filter by role
	if roleParam := c.Query("role"); roleParam != "" {
		role, err := models.ParseRole(roleParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		query = query.Where("role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.toResponse(user)
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.db.Preload("Manager").First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(user))
}

// CreateUser creates a staff user (admin only)
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, _ := models.ParseRole(req.Role)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	h.db.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	if req.ManagerID != nil && *req.ManagerID != 0 {
		if !h.checkManager(c, 0, role, *req.ManagerID) {
			return
		}
	} else {
		req.ManagerID = nil
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		ManagerID:    req.ManagerID,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	h.dir.Invalidate()

	logging.LogEvent("user_created", map[string]interface{}{"user_id": user.ID, "role": role.String()})

	h.db.Preload("Manager").First(&user, user.ID)
	c.JSON(http.StatusCreated, h.toResponse(user))
}

// UpdateUser updates a user's profile (admin only)
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := user.Role
	if req.Role != nil {
		role, _ = models.ParseRole(*req.Role)
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	managerID := user.ManagerID
	if req.ManagerID != nil {
		managerID = req.ManagerID
		if *managerID == 0 {
			managerID = nil
		}
	}
	if managerID != nil && !h.checkManager(c, id, role, *managerID) {
		return
	}

	updates := map[string]interface{}{
		"role":       role,
		"manager_id": managerID,
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Full name cannot be empty"})
			return
		}
		updates["full_name"] = name
	}

	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	h.dir.Invalidate()

	h.db.Preload("Manager").First(&user, id)
	c.JSON(http.StatusOK, h.toResponse(user))
}

// DeleteUser soft-deletes a user (admin only). Their leads become unassigned,
// their reports move up to their manager and rules routing to them are removed.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var unassigned int64
	err := h.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Lead{}).Where("assigned_to = ?", user.ID).Update("assigned_to", nil)
		if res.Error != nil {
			return res.Error
		}
		unassigned = res.RowsAffected

		if err := tx.Model(&models.User{}).Where("manager_id = ?", user.ID).Update("manager_id", user.ManagerID).Error; err != nil {
			return err
		}
		if err := tx.Where("assigned_agent_id = ?", user.ID).Delete(&models.AssignmentRule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})

	if err != nil {
		logging.LogError("user_delete_failed", err, map[string]interface{}{"user_id": user.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	h.dir.Invalidate()

	c.JSON(http.StatusOK, gin.H{
		"message":          "User deleted successfully",
		"unassigned_leads": unassigned,
	})
}

// Assignable returns the users the caller may assign leads to
func (h *Handler) Assignable(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	scope, err := h.dir.ScopeFor(c.Request.Context(), userID)
	if errors.Is(err, hierarchy.ErrUnknownViewer) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown user"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load hierarchy"})
		return
	}

	var users []models.User
	if scope.CanAssign() {
		query := h.db.Order("full_name")
		if !scope.All {
			query = query.Where("id IN ?", scope.UserIDs)
		}
		if err := query.Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
	}

	sort.SliceStable(users, func(i, j int) bool {
		return hierarchy.Rank(users[i].Role) < hierarchy.Rank(users[j].Role)
	})

	responses := make([]auth.UserResponse, len(users))
	for i, u := range users {
		responses[i] = auth.NewUserResponse(u)
	}
	c.JSON(http.StatusOK, responses)
}

// TeamStats returns lead and conversion counts for every member the caller can see
func (h *Handler) TeamStats(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	scope, err := h.dir.ScopeFor(c.Request.Context(), userID)
	if errors.Is(err, hierarchy.ErrUnknownViewer) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown user"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load hierarchy"})
		return
	}

	var members []models.User
	query := h.db.Order("full_name")
	if !scope.All {
		query = query.Where("id IN ?", scope.UserIDs)
	}
	if err := query.Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	stats := make([]TeamMemberStats, len(members))
	for i, m := range members {
		stats[i] = TeamMemberStats{ID: m.ID, FullName: m.FullName, Role: m.Role}
		h.db.Model(&models.Lead{}).Where("assigned_to = ?", m.ID).Count(&stats[i].Leads)
		h.db.Model(&models.Lead{}).Where("assigned_to = ? AND is_converted = ?", m.ID, true).Count(&stats[i].Conversions)
	}

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers user routes on an authenticated router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/assignable", h.Assignable)
	rg.GET("/users/team-stats", h.TeamStats)

	admin := rg.Group("", auth.RequireAdmin())
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.GET("/users/:id", h.GetUser)
	admin.PUT("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeleteUser)
}
