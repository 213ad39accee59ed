package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	"go.uber.org/zap"
)

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) AdminListOrders(c *gin.Context) {
	var req orderdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	req.Email = strings.TrimSpace(req.Email)

	resp, err := s.orderSvc.ListAll(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Orders, "page_info": resp.PageInfo})
}

// AdminListCustomerOrders is a buyer's purchase history: completed orders only.
func (s *Server) AdminListCustomerOrders(c *gin.Context) {
	resp, err := s.orderSvc.ListByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminGetOrder(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)
	resp, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminUpdateOrderStatus(c *gin.Context) {
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)
	resp, err := s.orderSvc.UpdateStatus(c.Request.Context(), id, strings.TrimSpace(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "order.status_updated", "order", id, map[string]any{"status": resp.Status})
	s.log.Info("order status updated by admin",
		zap.String("order_id", id),
		zap.String("status", resp.Status),
		zap.String("admin", c.GetString(contextAdminNameKey)),
	)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminReceiptPDF(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)
	body, filename, err := s.receipts.RenderPDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", filename),
		"Cache-Control":       "no-store",
	})
}

func (s *Server) AdminResendReceipt(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)
	if err := s.receipts.Resend(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "receipt.resent", "order", id, nil)
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func (s *Server) AdminListTokens(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)
	resp, err := s.issuer.ListByOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminRegenerateToken(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("order_id", id)
	resp, err := s.issuer.Regenerate(c.Request.Context(), id, strings.TrimSpace(c.Param("productId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "download_token.regenerated", "order", id, map[string]any{"product_id": resp.ProductID})
	s.log.Info("download token regenerated",
		zap.String("order_id", id),
		zap.String("product_id", resp.ProductID),
		zap.String("admin", c.GetString(contextAdminNameKey)),
	)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
