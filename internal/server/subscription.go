package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	pricingdomain "github.com/smallbiznis/recurflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
)

func lineItemOwnerType(raw string) (string, error) {
	switch strings.TrimSpace(raw) {
	case orderdomain.OwnerTypeOrder:
		return orderdomain.OwnerTypeOrder, nil
	case orderdomain.OwnerTypeUpsell:
		return orderdomain.OwnerTypeUpsell, nil
	default:
		return "", newValidationError("owner_type", "invalid_owner_type", "invalid owner_type")
	}
}

func (s *Server) GetLineItemStatus(c *gin.Context) {
	ownerType, err := lineItemOwnerType(c.Param("owner_type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := s.subscriptionSvc.Status(c.Request.Context(), subscriptiondomain.StatusRequest{
		OwnerType: ownerType,
		OrderID:   id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": status}})
}

func (s *Server) GetNextSchedule(c *gin.Context) {
	ownerType, err := lineItemOwnerType(c.Param("owner_type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	schedule, err := s.subscriptionSvc.NextSchedule(c.Request.Context(), subscriptiondomain.NextScheduleRequest{
		OwnerType: ownerType,
		OrderID:   id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": schedule})
}

func (s *Server) GetLineItemPricing(c *gin.Context) {
	ownerType, err := lineItemOwnerType(c.Param("owner_type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.pricingSvc.ComputeLineItemPricing(c.Request.Context(), pricingdomain.ComputeRequest{
		OwnerType: ownerType,
		OrderID:   id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) UpsertSubscriptionOverride(c *gin.Context) {
	subscriptionID := strings.TrimSpace(c.Param("subscription_id"))
	if subscriptionID == "" {
		AbortWithError(c, newValidationError("subscription_id", "invalid_subscription_id", "invalid subscription_id"))
		return
	}

	var req struct {
		AddressID              string  `json:"address_id"`
		ContactPaymentSourceID string  `json:"contact_payment_source_id"`
		PromoCode              *string `json:"promo_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	addressID, err := parseOptionalSnowflakeID(req.AddressID)
	if err != nil {
		AbortWithError(c, newValidationError("address_id", "invalid_address_id", "invalid address_id"))
		return
	}
	paymentSourceID, err := parseOptionalSnowflakeID(req.ContactPaymentSourceID)
	if err != nil {
		AbortWithError(c, newValidationError("contact_payment_source_id", "invalid_contact_payment_source_id", "invalid contact_payment_source_id"))
		return
	}

	override, err := s.subscriptionSvc.UpsertOverride(c.Request.Context(), subscriptiondomain.UpsertOverrideRequest{
		SubscriptionID:         subscriptionID,
		AddressID:              addressID,
		ContactPaymentSourceID: paymentSourceID,
		PromoCode:              req.PromoCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": override})
}

func (s *Server) ConsumeSubscriptionOverride(c *gin.Context) {
	subscriptionID := strings.TrimSpace(c.Param("subscription_id"))
	if subscriptionID == "" {
		AbortWithError(c, newValidationError("subscription_id", "invalid_subscription_id", "invalid subscription_id"))
		return
	}

	override, err := s.subscriptionSvc.ConsumeOverride(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": override})
}
