package server

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/digistore/internal/storage"
	"go.uber.org/zap"
)

const maxAssetUpload = 512 << 20

type uploadURLRequest struct {
	FileName string `json:"file_name"`
}

type uploadURLResponse struct {
	FileID    string `json:"file_id"`
	FileName  string `json:"file_name"`
	UploadURL string `json:"upload_url"`
	ViewURL   string `json:"view_url"`
	ExpiresIn int64  `json:"expires_in"`
}

// GetAsset serves a stored object through a signed, time-limited link.
func (s *Server) GetAsset(c *gin.Context) {
	name, err := storage.CleanName(c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.signer.Verify(storage.MethodGet, name, c.Query("expires"), c.Query("sig")); err != nil {
		AbortWithError(c, err)
		return
	}

	obj, err := s.assets.Open(c.Request.Context(), name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer func() {
		if err := obj.Close(); err != nil {
			s.log.Warn("failed to close asset", zap.String("name", name), zap.Error(err))
		}
	}()

	size := obj.Info.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, obj.Info.ContentType, obj, map[string]string{
		"Cache-Control": "private, max-age=300",
	})
}

// UploadAsset stores the request body under a name issued by the admin
// upload-url endpoint.
func (s *Server) UploadAsset(c *gin.Context) {
	name, err := storage.CleanName(c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.signer.Verify(storage.MethodPut, name, c.Query("expires"), c.Query("sig")); err != nil {
		AbortWithError(c, err)
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxAssetUpload)
	info, err := s.assets.Put(c.Request.Context(), name, body, c.ContentType())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"file_id":      info.Name,
		"size":         info.Size,
		"content_type": info.ContentType,
	}})
}

func (s *Server) AdminCreateUploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		AbortWithError(c, newValidationError("file_name", "required", "file_name is required"))
		return
	}

	fileID := assetName(fileName)
	c.JSON(http.StatusOK, gin.H{"data": uploadURLResponse{
		FileID:    fileID,
		FileName:  fileName,
		UploadURL: s.signer.UploadURL(fileID),
		ViewURL:   s.signer.DownloadURL(fileID),
		ExpiresIn: int64(s.signer.ExpiresIn().Seconds()),
	}})
}

// assetName is a unique, URL-safe object name that keeps the extension.
func assetName(fileName string) string {
	ext := slug.Make(strings.TrimPrefix(path.Ext(fileName), "."))
	if ext != "" {
		ext = "." + ext
	}
	base := slug.Make(strings.TrimSuffix(fileName, path.Ext(fileName)))
	id := strings.ToLower(ulid.Make().String())
	if base == "" {
		return id + ext
	}
	if len(base) > 48 {
		base = base[:48]
	}
	return id + "-" + base + ext
}
