package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/digistore/internal/cart"
)

type cartItemRequest struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Quantity *int   `json:"quantity"`
}

func (r cartItemRequest) ref() cart.ItemRef {
	kind := strings.ToLower(strings.TrimSpace(r.Type))
	if kind == "" {
		kind = cart.KindProduct
	}
	return cart.ItemRef{Kind: kind, ID: strings.TrimSpace(r.ID)}
}

type cartCheckoutRequest struct {
	Email string `json:"email"`
}

func (s *Server) GetCart(c *gin.Context) {
	view, err := s.cartSvc.Get(c.Request.Context(), c.Param("cartId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) AddCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.cartSvc.Add(c.Request.Context(), c.Param("cartId"), req.ref())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

// UpdateCartItem sets the line quantity; zero or less removes the line.
func (s *Server) UpdateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Quantity == nil {
		AbortWithError(c, cart.ErrInvalidQuantity)
		return
	}

	view, err := s.cartSvc.UpdateQuantity(c.Request.Context(), c.Param("cartId"), req.ref(), *req.Quantity)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) RemoveCartItem(c *gin.Context) {
	req := cartItemRequest{Type: c.Param("type"), ID: c.Param("id")}
	view, err := s.cartSvc.Remove(c.Request.Context(), c.Param("cartId"), req.ref())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) ClearCart(c *gin.Context) {
	view, err := s.cartSvc.Clear(c.Request.Context(), c.Param("cartId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) CheckoutCart(c *gin.Context) {
	var req cartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.cartSvc.Checkout(c.Request.Context(), c.Param("cartId"), req.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
