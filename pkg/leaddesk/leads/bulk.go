package leads

import (
	"math/rand"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/hierarchy"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// DistributeRequest spreads leads across agents
type DistributeRequest struct {
	LeadIDs  []uint `json:"lead_ids" binding:"required,min=1"`
	AgentIDs []uint `json:"agent_ids" binding:"required,min=1"`
}

// BulkStatusRequest sets one status on many leads
type BulkStatusRequest struct {
	LeadIDs []uint `json:"lead_ids" binding:"required,min=1"`
	Status  string `json:"status" binding:"required"`
}

// BulkAssignRequest hands many leads to one agent
type BulkAssignRequest struct {
	LeadIDs []uint `json:"lead_ids" binding:"required,min=1"`
	AgentID uint   `json:"agent_id" binding:"required"`
}

// BulkDeleteRequest removes many leads
type BulkDeleteRequest struct {
	LeadIDs []uint `json:"lead_ids" binding:"required,min=1"`
}

// visibleLeads loads the requested leads that fall inside scope.
func (h *Handler) visibleLeads(scope hierarchy.Scope, ids []uint) ([]models.Lead, error) {
	var leads []models.Lead
	err := h.db.Scopes(scope.Apply("assigned_to")).Where("id IN ?", ids).Order("id").Find(&leads).Error
	return leads, err
}

// Distribute shuffles the selected leads and deals them round-robin to the
// selected agents, so counts differ by at most one.
func (h *Handler) Distribute(c *gin.Context) {
	var req DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scope, ok := ViewerScope(c, h.dir)
	if !ok {
		return
	}

	agents := make([]models.User, 0, len(req.AgentIDs))
	for _, id := range req.AgentIDs {
		agent, ok := h.checkAssignee(c, scope, id)
		if !ok {
			return
		}
		agents = append(agents, agent)
	}

	leads, err := h.visibleLeads(scope, req.LeadIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
		return
	}

	rand.Shuffle(len(leads), func(i, j int) { leads[i], leads[j] = leads[j], leads[i] })

	counts := make(map[uint]int, len(agents))
	err = h.db.Transaction(func(tx *gorm.DB) error {
		for i := range leads {
			agent := agents[i%len(agents)]
			if err := assign(tx, &leads[i], &agent, "Distributed to %s", actorID(c)); err != nil {
				return err
			}
			counts[agent.ID]++
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to distribute leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"distributed": len(leads),
		"per_agent":   counts,
	})
}

// BulkStatus sets the status of every visible lead in the request
func (h *Handler) BulkStatus(c *gin.Context) {
	var req BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.statusExists(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	scope, ok := ViewerScope(c, h.dir)
	if !ok {
		return
	}

	leads, err := h.visibleLeads(scope, req.LeadIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
		return
	}

	updated := 0
	err = h.db.Transaction(func(tx *gorm.DB) error {
		for i := range leads {
			if leads[i].Status == req.Status {
				continue
			}
			if err := changeStatus(tx, &leads[i], req.Status, actorID(c)); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// BulkAssign hands every visible lead in the request to one agent
func (h *Handler) BulkAssign(c *gin.Context) {
	var req BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scope, ok := ViewerScope(c, h.dir)
	if !ok {
		return
	}
	agent, ok := h.checkAssignee(c, scope, req.AgentID)
	if !ok {
		return
	}

	leads, err := h.visibleLeads(scope, req.LeadIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leads"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		for i := range leads {
			if err := assign(tx, &leads[i], &agent, "Assigned to %s", actorID(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(leads)})
}

// BulkDelete removes leads with their activities, deposits and notifications (admin only)
func (h *Handler) BulkDelete(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var deleted int64
	err := h.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.LeadActivity{}, &models.Deposit{}, &models.LeadNotification{}} {
			if err := tx.Where("lead_id IN ?", req.LeadIDs).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id IN ?", req.LeadIDs).Delete(&models.Lead{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
