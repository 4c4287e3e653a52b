package apikeys

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// SourceStats summarises the leads delivered through one API key
type SourceStats struct {
	Affiliator     string     `json:"affiliator"`
	SourcePrefix   string     `json:"source_prefix"`
	TotalLeads     int64      `json:"total_leads"`
	ConvertedLeads int64      `json:"converted_leads"`
	TotalDeposits  float64    `json:"total_deposits"`
	LastLead       *time.Time `json:"last_lead"`
}

var timeframes = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"all": 0,
}

// Stats returns per-key lead counts for a timeframe (24h, 7d, 30d or all; default 30d)
func (h *Handler) Stats(c *gin.Context) {
	timeframe := c.DefaultQuery("timeframe", "30d")
	window, ok := timeframes[timeframe]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeframe must be one of 24h, 7d, 30d, all"})
		return
	}

	var apiKeys []models.APIKey
	if err := h.db.Select("id", "name", "source_prefix").Order("name").Find(&apiKeys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	var since time.Time
	if window > 0 {
		since = time.Now().Add(-window)
	}

	stats := make([]SourceStats, 0, len(apiKeys))
	for _, key := range apiKeys {
		s, err := h.sourceStats(key, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
			return
		}
		stats = append(stats, s)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) sourceStats(key models.APIKey, since time.Time) (SourceStats, error) {
	s := SourceStats{Affiliator: key.Name, SourcePrefix: key.SourcePrefix}

	base := h.db.Model(&models.Lead{}).Where("source = ?", key.SourcePrefix)
	if !since.IsZero() {
		base = base.Where("created_at >= ?", since)
	}
	base = base.Session(&gorm.Session{})

	if err := base.Count(&s.TotalLeads).Error; err != nil {
		return s, err
	}
	if s.TotalLeads == 0 {
		return s, nil
	}
	if err := base.Where("is_converted = ?", true).Count(&s.ConvertedLeads).Error; err != nil {
		return s, err
	}
	if err := base.Select("COALESCE(SUM(total_deposits), 0)").Scan(&s.TotalDeposits).Error; err != nil {
		return s, err
	}

	var last models.Lead
	if err := base.Select("created_at").Order("created_at DESC").Take(&last).Error; err != nil {
		return s, err
	}
	s.LastLead = &last.CreatedAt
	return s, nil
}
