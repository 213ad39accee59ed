package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
)

func (s *Server) CreateCheckout(c *gin.Context) {
	var req checkoutdomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkoutSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CheckoutSuccess backs the post-checkout page. It is polled until the
// payment webhook completes the order.
func (s *Server) CheckoutSuccess(c *gin.Context) {
	var req checkoutdomain.SuccessRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkoutSvc.Success(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.OrderID != "" {
		c.Set("order_id", resp.OrderID)
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
