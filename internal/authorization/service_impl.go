package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCategory      = "category"
	ObjectProduct       = "product"
	ObjectBundle        = "bundle"
	ObjectAsset         = "asset"
	ObjectOrder         = "order"
	ObjectReceipt       = "receipt"
	ObjectDownloadToken = "download_token"
	ObjectSetting       = "setting"
	ObjectAuditLog      = "audit_log"
)

const (
	ActionCategoryView   = "category.view"
	ActionCategoryCreate = "category.create"
	ActionCategoryUpdate = "category.update"
	ActionCategoryDelete = "category.delete"

	ActionProductView   = "product.view"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"

	ActionBundleView   = "bundle.view"
	ActionBundleCreate = "bundle.create"
	ActionBundleUpdate = "bundle.update"
	ActionBundleDelete = "bundle.delete"

	ActionAssetUpload = "asset.upload"

	ActionOrderView         = "order.view"
	ActionOrderUpdateStatus = "order.update_status"

	ActionReceiptView   = "receipt.view"
	ActionReceiptResend = "receipt.resend"

	ActionDownloadTokenView       = "download_token.view"
	ActionDownloadTokenRegenerate = "download_token.regenerate"

	ActionSettingView   = "setting.view"
	ActionSettingUpdate = "setting.update"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, role string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !ValidRole(role) {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("admin:%s", actor)
	if err := s.ensureGrouping(subject, roleSubject(role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor", actor),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per admin so a key whose role
// changed in configuration loses the old grants.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func roleSubject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleSubject(RoleAdmin), "*", "*"},
		{roleSubject(RoleAdmin), ObjectAuditLog, ActionAuditLogView},

		{roleSubject(RoleSupport), ObjectOrder, ActionOrderView},
		{roleSubject(RoleSupport), ObjectReceipt, ActionReceiptView},
		{roleSubject(RoleSupport), ObjectReceipt, ActionReceiptResend},
		{roleSubject(RoleSupport), ObjectDownloadToken, ActionDownloadTokenView},
		{roleSubject(RoleSupport), ObjectDownloadToken, ActionDownloadTokenRegenerate},
		{roleSubject(RoleSupport), ObjectCategory, ActionCategoryView},
		{roleSubject(RoleSupport), ObjectProduct, ActionProductView},
		{roleSubject(RoleSupport), ObjectBundle, ActionBundleView},
		{roleSubject(RoleSupport), ObjectSetting, ActionSettingView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
