package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/digistore/internal/payment/adapters/stripe"
	"go.uber.org/zap"
)

// Stripe bodies are small; anything larger is not a checkout event.
const maxWebhookBody = 1 << 20

func (s *Server) HandleStripeWebhook(c *gin.Context) {
	s.ingestWebhook(c, stripe.Provider)
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	s.ingestWebhook(c, strings.TrimSpace(c.Param("provider")))
}

// ingestWebhook verifies against the raw body, so nothing may read or bind
// the request before it.
func (s *Server) ingestWebhook(c *gin.Context, provider string) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result != nil && result.OrderID != "" {
		c.Set("order_id", result.OrderID)
	}
	if result != nil && result.Duplicate {
		s.log.Info("duplicate webhook acknowledged",
			zap.String("provider", provider),
			zap.String("event_id", result.EventID),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
