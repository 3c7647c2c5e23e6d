package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	consentdomain "github.com/smallbiznis/recurflow/internal/consent/domain"
	"gorm.io/datatypes"
)

func (s *Server) ApplyConsent(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		ConsentedDate string `json:"consented_date"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	consentedDate, err := parseOptionalTime(req.ConsentedDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("consented_date", "invalid_consented_date", "invalid consented_date"))
		return
	}

	headers := datatypes.JSONMap{}
	for _, key := range []string{"User-Agent", "Accept-Language"} {
		if v := c.GetHeader(key); v != "" {
			headers[strings.ToLower(key)] = v
		}
	}

	consent, err := s.consentSvc.ApplyConsent(c.Request.Context(), actorFrom(c), consentdomain.ApplyRequest{
		OrderID:        id,
		IPAddress:      c.ClientIP(),
		HTTPReferrer:   c.GetHeader("Referer"),
		RequestHeaders: headers,
		ConsentedDate:  consentedDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": consent})
}

func (s *Server) CancelConsent(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cancelled, err := s.consentSvc.CancelConsent(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": cancelled}})
}

func (s *Server) DeleteConsent(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.consentSvc.DeleteConsent(c.Request.Context(), actorFrom(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) GetCanRebill(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ok, err := s.consentSvc.CanRebill(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"can_rebill": ok}})
}
