package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
)

const defaultFeaturedLimit = 6

type categoryDetail struct {
	categorydomain.Response
	Subcategories []categorydomain.Response `json:"subcategories"`
}

func (s *Server) ListCatalogProducts(c *gin.Context) {
	var query struct {
		Category string `form:"category"`
		Search   string `form:"search"`
		Type     string `form:"type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), productdomain.ListRequest{
		CategorySlug: strings.TrimSpace(query.Category),
		Search:       strings.TrimSpace(query.Search),
		Type:         strings.TrimSpace(query.Type),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFeaturedProducts(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"), defaultFeaturedLimit)
	if err != nil || limit <= 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.productSvc.Featured(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProductTypes(c *gin.Context) {
	resp, err := s.productSvc.Types(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCatalogProduct(c *gin.Context) {
	resp, err := s.productSvc.GetBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCatalogCategories(c *gin.Context) {
	resp, err := s.categorySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTopCategories(c *gin.Context) {
	resp, err := s.categorySvc.TopLevel(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCatalogCategory(c *gin.Context) {
	ctx := c.Request.Context()
	category, err := s.categorySvc.GetBySlug(ctx, strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	children, err := s.categorySvc.Children(ctx, category.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categoryDetail{Response: *category, Subcategories: children}})
}

func (s *Server) ListCatalogBundles(c *gin.Context) {
	resp, err := s.bundleSvc.List(c.Request.Context(), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCatalogBundle(c *gin.Context) {
	resp, err := s.bundleSvc.GetBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
