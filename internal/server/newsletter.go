package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	newsletterdomain "github.com/smallbiznis/digistore/internal/newsletter/domain"
)

func (s *Server) SubscribeNewsletter(c *gin.Context) {
	var req newsletterdomain.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.newsletterSvc.Subscribe(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
