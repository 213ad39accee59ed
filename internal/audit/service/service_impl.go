package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/digistore/internal/audit/domain"
	"github.com/smallbiznis/digistore/internal/clock"
	obscontext "github.com/smallbiznis/digistore/internal/observability/context"
	"github.com/smallbiznis/digistore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	resolvedType, resolvedID, role := s.resolveActor(ctx, strings.TrimSpace(actorType), actorID)
	if role != "" {
		payload["actor_role"] = role
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate().Int64(),
		ActorType:  resolvedType,
		ActorID:    resolvedID,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(targetID),
		Metadata:   datatypes.JSONMap(payload),
		IPAddress:  normalizeString(obscontext.ClientIPFromContext(ctx)),
		RequestID:  normalizeString(obscontext.RequestIDFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (*auditdomain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return nil, auditdomain.ErrInvalidTimeRange
	}
	cursor, err := req.Cursor()
	if err != nil {
		return nil, err
	}
	limit := req.Limit()

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorID:    req.ActorID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      limit + 1,
	})
	if err != nil {
		return nil, err
	}

	page, info, err := pagination.Page(items, limit, func(item auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: item.ID, CreatedAt: item.CreatedAt}
	})
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = []auditdomain.AuditLog{}
	}
	return &auditdomain.ListResponse{AuditLogs: page, PageInfo: info}, nil
}

// resolveActor prefers the explicit actor, then the admin key on ctx.
func (s *Service) resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string, string) {
	var role string
	if actorType == "" {
		if ctxRole, ctxName := obscontext.ActorFromContext(ctx); ctxName != "" {
			actorType = string(auditdomain.ActorTypeAdmin)
			role = ctxRole
			if normalizePointer(actorID) == nil {
				actorID = &ctxName
			}
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	return actorType, normalizePointer(actorID), role
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	return normalizeString(*value)
}

func normalizeString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
