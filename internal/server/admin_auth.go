package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/digistore/internal/authorization"
	"github.com/smallbiznis/digistore/internal/config"
	obscontext "github.com/smallbiznis/digistore/internal/observability/context"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	contextAdminNameKey = "admin_name"
	contextAdminRoleKey = "admin_role"
)

var ErrInvalidAdminKey = errors.New("invalid_admin_key")

// AdminKey is one configured bearer credential. Only the bcrypt hash of the
// secret is kept.
type AdminKey struct {
	Name string
	Role string
	hash []byte
}

type AdminKeys struct {
	keys []AdminKey
}

// ParseAdminKeys reads entries formatted as name:role:bcrypt-hash.
func ParseAdminKeys(entries []string) (*AdminKeys, error) {
	out := &AdminKeys{}
	for _, entry := range entries {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: expected name:role:hash", ErrInvalidAdminKey)
		}
		name := strings.TrimSpace(parts[0])
		role := strings.ToLower(strings.TrimSpace(parts[1]))
		hash := strings.TrimSpace(parts[2])
		if name == "" || hash == "" {
			return nil, fmt.Errorf("%w: empty name or hash", ErrInvalidAdminKey)
		}
		if !authorization.ValidRole(role) {
			return nil, fmt.Errorf("%w: unknown role %q for %s", ErrInvalidAdminKey, role, name)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAdminKey, name, err)
		}
		out.keys = append(out.keys, AdminKey{Name: name, Role: role, hash: []byte(hash)})
	}
	return out, nil
}

func NewAdminKeys(cfg config.Config, log *zap.Logger) (*AdminKeys, error) {
	keys, err := ParseAdminKeys(cfg.Admin.Keys)
	if err != nil {
		return nil, err
	}
	if keys.Len() == 0 {
		log.Warn("ADMIN_API_KEYS not set, admin routes will reject every request")
	}
	return keys, nil
}

func (k *AdminKeys) Len() int {
	if k == nil {
		return 0
	}
	return len(k.keys)
}

// Match returns the key whose hash accepts secret.
func (k *AdminKeys) Match(secret string) (*AdminKey, bool) {
	if k == nil || secret == "" {
		return nil, false
	}
	for i := range k.keys {
		if bcrypt.CompareHashAndPassword(k.keys[i].hash, []byte(secret)) == nil {
			return &k.keys[i], true
		}
	}
	return nil, false
}

// AdminRequired authenticates admin requests with a configured bearer key.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, ok := s.adminKeys.Match(parts[1])
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextAdminNameKey, key.Name)
		c.Set(contextAdminRoleKey, key.Role)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), key.Role, key.Name))
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.GetString(contextAdminNameKey)
		role := c.GetString(contextAdminRoleKey)
		if name == "" || role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), name, role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
