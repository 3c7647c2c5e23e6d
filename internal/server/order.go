package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	historydomain "github.com/smallbiznis/recurflow/internal/history/domain"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	"github.com/smallbiznis/recurflow/pkg/db/pagination"
)

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CustomerID     string `form:"customer_id"`
		SubscriptionID string `form:"subscription_id"`
		Status         string `form:"status"`
		SortBy         string `form:"sort_by"`
		OrderBy        string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := parseOptionalSnowflakeID(query.CustomerID)
	if err != nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}

	req := orderdomain.ListOrdersRequest{
		CustomerID: customerID,
		SortBy:     strings.TrimSpace(query.SortBy),
		OrderBy:    strings.TrimSpace(query.OrderBy),
		Pagination: query.Pagination,
	}
	if sub := strings.TrimSpace(query.SubscriptionID); sub != "" {
		req.SubscriptionID = &sub
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		st := orderdomain.OrderStatus(status)
		req.Status = &st
	}

	resp, err := s.orderSvc.ListOrders(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Data, "page_info": resp.PageInfo})
}

func (s *Server) GetOrderByID(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) CancelOrder(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orderSvc.Cancel(c.Request.Context(), actorFrom(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancelled": true}})
}

func (s *Server) VoidOrder(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		KeepRecurring bool `json:"keep_recurring"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	if err := s.orderSvc.Void(c.Request.Context(), actorFrom(c), orderdomain.VoidRequest{
		OrderID:       id,
		KeepRecurring: req.KeepRecurring,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"voided": true}})
}

func (s *Server) SwapOrder(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.swapSvc.Swap(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListOrderHistory(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		pagination.Pagination
		Type string `form:"type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := historydomain.ListNotesRequest{
		OrderID:    id,
		Pagination: query.Pagination,
	}
	if noteType := strings.TrimSpace(query.Type); noteType != "" {
		req.Type = &noteType
	}

	resp, err := s.historySvc.ListHistoryNotes(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Data, "page_info": resp.PageInfo})
}

func (s *Server) GetShippableCount(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	firstOnly, err := parseOptionalBool(c.Query("return_first_one"))
	if err != nil {
		AbortWithError(c, newValidationError("return_first_one", "invalid_return_first_one", "invalid return_first_one"))
		return
	}

	count, err := s.orderSvc.ShippableProductCount(c.Request.Context(), id, firstOnly != nil && *firstOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": count}})
}

func (s *Server) GetShipmentState(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	partial, err := s.orderSvc.IsPartiallyShipped(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	full, err := s.orderSvc.IsFullyShipped(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"partially_shipped": partial,
		"fully_shipped":     full,
	}})
}

func (s *Server) StopTerminalProducts(c *gin.Context) {
	id, err := pathOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orderSvc.StopTerminalProducts(c.Request.Context(), actorFrom(c), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"stopped": true}})
}
