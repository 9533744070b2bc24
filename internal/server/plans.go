package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListPlans(c *gin.Context) {
	cfg := s.renewalCfg.Get()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"plans":      s.catalog.Plans(),
		"trial_tier": s.catalog.TrialTier(),
		"trial_days": cfg.TrialDays,
		"cycle_days": cfg.CycleDays,
		"currency":   cfg.Currency,
	}})
}
