package authorization

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

type Service interface {
	// Authorize checks whether the admin identified by actor, holding role,
	// may perform action on object.
	Authorize(ctx context.Context, actor string, role string, object string, action string) error
}

const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSupport:
		return true
	default:
		return false
	}
}
