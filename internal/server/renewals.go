package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	obsmiddleware "github.com/smallbiznis/tenantdesk/internal/observability/logger"
	renewaldomain "github.com/smallbiznis/tenantdesk/internal/renewal/domain"
)

type setTargetTierRequest struct {
	Tier string `json:"tier"`
}

type setUseCreditRequest struct {
	UseCredit *bool `json:"use_credit"`
}

type addPaymentLegRequest struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

func (s *Server) OpenRenewal(c *gin.Context) {
	resp, err := s.renewalSvc.Open(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obsmiddleware.RenewalIDKey, resp.ID.String())
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetRenewal(c *gin.Context) {
	resp, err := s.renewalSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetRenewalTargetTier(c *gin.Context) {
	var req setTargetTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.renewalSvc.SetTargetTier(c.Request.Context(), c.Param("id"), req.Tier)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetRenewalUseCredit(c *gin.Context) {
	var req setUseCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.UseCredit == nil {
		AbortWithError(c, newValidationError("use_credit", "required", "use_credit is required"))
		return
	}

	resp, err := s.renewalSvc.SetUseCredit(c.Request.Context(), c.Param("id"), *req.UseCredit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddRenewalPaymentLeg(c *gin.Context) {
	var req addPaymentLegRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.renewalSvc.AddPaymentLeg(c.Request.Context(), c.Param("id"), renewaldomain.AddPaymentLegRequest{
		Method:    req.Method,
		Amount:    req.Amount,
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveRenewalPaymentLeg(c *gin.Context) {
	resp, err := s.renewalSvc.RemovePaymentLeg(c.Request.Context(), c.Param("id"), c.Param("leg_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CommitRenewal(c *gin.Context) {
	resp, err := s.renewalSvc.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelRenewal(c *gin.Context) {
	if err := s.renewalSvc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
