package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
)

type setSettingRequest struct {
	Value *string `json:"value"`
}

// GetBranding is public; the storefront renders its copy from it.
func (s *Server) GetBranding(c *gin.Context) {
	resp, err := s.settingsSvc.Branding(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminUpdateBranding(c *gin.Context) {
	var req settingsdomain.BrandingUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settingsSvc.UpdateBranding(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, "branding.updated", "setting", "branding", nil)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminListSettings(c *gin.Context) {
	resp, err := s.settingsSvc.All(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminGetSetting(c *gin.Context) {
	resp, err := s.settingsSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("key")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdminSetSetting(c *gin.Context) {
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		AbortWithError(c, newValidationError("value", "required", "value is required"))
		return
	}

	resp, err := s.settingsSvc.Set(c.Request.Context(), strings.TrimSpace(c.Param("key")), *req.Value)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, "setting.updated", "setting", resp.Key, nil)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
