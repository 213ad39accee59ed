package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const headerDownloadsRemaining = "X-Downloads-Remaining"

// Download spends one attempt on the token and delivers the asset, either as
// a redirect to the external link or as a streamed attachment.
func (s *Server) Download(c *gin.Context) {
	delivery, err := s.gateway.Consume(c.Request.Context(), strings.TrimSpace(c.Param("token")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header(headerDownloadsRemaining, strconv.Itoa(delivery.Remaining))
	c.Header("Cache-Control", "no-store")

	if delivery.IsRedirect() {
		c.Redirect(http.StatusFound, delivery.RedirectURL)
		return
	}
	defer func() {
		if err := delivery.Body.Close(); err != nil {
			s.log.Warn("failed to close asset", zap.Error(err))
		}
	}()

	contentType := delivery.ContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	disposition := contentDisposition(delivery.FileName)

	size := delivery.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, contentType, delivery.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (s *Server) DownloadInfo(c *gin.Context) {
	resp, err := s.gateway.Lookup(c.Request.Context(), strings.TrimSpace(c.Param("token")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// contentDisposition quotes the attachment name, replacing bytes that cannot
// appear inside a quoted-string.
func contentDisposition(name string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if safe == "" {
		safe = "download"
	}
	return fmt.Sprintf("attachment; filename=%q", safe)
}
