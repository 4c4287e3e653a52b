package leads

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DepositRequest adds money to a client's balance
type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// DepositResponse represents a deposit in API responses
type DepositResponse struct {
	ID          uint    `json:"id"`
	LeadID      uint    `json:"lead_id"`
	Amount      float64 `json:"amount"`
	CreatedByID uint    `json:"created_by_id"`
	CreatedAt   string  `json:"created_at"`
}

// Promote turns a lead into a retention client
func (h *Handler) Promote(c *gin.Context) {
	lead, _, ok := h.loadLead(c)
	if !ok {
		return
	}
	if lead.IsConverted {
		c.JSON(http.StatusConflict, gin.H{"error": "Lead is already a client"})
		return
	}

	now := time.Now().UTC()
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&lead).Omit(clause.Associations).Updates(map[string]interface{}{
			"is_converted": true,
			"converted_at": now,
			"status":       models.StatusConverted,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.LeadActivity{
			LeadID:      lead.ID,
			Type:        models.ActivityConversion,
			Description: "Lead converted to client",
			CreatedByID: actorID(c),
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert lead"})
		return
	}

	lead = h.reload(lead.ID)
	c.JSON(http.StatusOK, leadToResponse(lead))
}

// Demote moves a client back to the sales view
func (h *Handler) Demote(c *gin.Context) {
	lead, _, ok := h.loadLead(c)
	if !ok {
		return
	}
	if !lead.IsConverted {
		c.JSON(http.StatusConflict, gin.H{"error": "Lead is not a client"})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&lead).Omit(clause.Associations).Updates(map[string]interface{}{
			"is_converted": false,
			"converted_at": nil,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.LeadActivity{
			LeadID:      lead.ID,
			Type:        models.ActivityDemotion,
			Description: "Client demoted to lead",
			CreatedByID: actorID(c),
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to demote client"})
		return
	}

	lead = h.reload(lead.ID)
	c.JSON(http.StatusOK, leadToResponse(lead))
}

// AddDeposit records a deposit. The first one sets the FTD date.
func (h *Handler) AddDeposit(c *gin.Context) {
	lead, _, ok := h.loadLead(c)
	if !ok {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := *actorID(c)
	deposit := models.Deposit{LeadID: lead.ID, Amount: req.Amount, CreatedByID: userID}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&deposit).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"balance":        gorm.Expr("balance + ?", req.Amount),
			"total_deposits": gorm.Expr("total_deposits + ?", req.Amount),
			"status":         models.StatusDeposited,
			"has_deposited":  true,
		}
		if lead.FTDDate == nil {
			updates["ftd_date"] = deposit.CreatedAt
		}
		if err := tx.Model(&lead).Omit(clause.Associations).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Create(&models.LeadActivity{
			LeadID:      lead.ID,
			Type:        models.ActivityDeposit,
			Description: fmt.Sprintf("Deposit of %.2f added", req.Amount),
			CreatedByID: &userID,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add deposit"})
		return
	}

	c.JSON(http.StatusCreated, depositToResponse(deposit))
}

// ListDeposits returns a lead's deposits, newest first
func (h *Handler) ListDeposits(c *gin.Context) {
	lead, _, ok := h.loadLead(c)
	if !ok {
		return
	}

	var deposits []models.Deposit
	if err := h.db.Where("lead_id = ?", lead.ID).Order("created_at DESC").Order("id DESC").Find(&deposits).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch deposits"})
		return
	}

	responses := make([]DepositResponse, len(deposits))
	for i, d := range deposits {
		responses[i] = depositToResponse(d)
	}
	c.JSON(http.StatusOK, responses)
}

func depositToResponse(d models.Deposit) DepositResponse {
	return DepositResponse{
		ID:          d.ID,
		LeadID:      d.LeadID,
		Amount:      d.Amount,
		CreatedByID: d.CreatedByID,
		CreatedAt:   isoTime(d.CreatedAt),
	}
}
