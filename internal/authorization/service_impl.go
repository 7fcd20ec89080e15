package authorization

import (
	"context"
	_ "embed"
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
	ObjectBoost     = "boost"
	ObjectListing   = "listing"
	ObjectScheduler = "scheduler"
)

const (
	ActionBoostPurchase  = "boost.purchase"
	ActionBoostConfirm   = "boost.confirm"
	ActionBoostCancel    = "boost.cancel"
	ActionBoostAutoRenew = "boost.auto_renew"
	ActionBoostView      = "boost.view"
	ActionBoostList      = "boost.list"

	// privileged
	ActionBoostGrant     = "boost.grant"
	ActionBoostOverride  = "boost.override"
	ActionBoostManageAny = "boost.manage_any"

	ActionListingRank = "listing.rank"

	ActionSchedulerRun = "scheduler.run"
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
	return newEnforcer(adapter)
}

// NewMemoryEnforcer builds an enforcer with seeded policies and no persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return newEnforcer(nil)
}

func newEnforcer(adapter *gormadapter.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter != nil {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, err
	}

	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	if actor.IsZero() {
		return ErrInvalidActor
	}
	if !isKnownRole(actor.Role) {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := actor.subject()
	if err := s.ensureGrouping(subject, roleName(actor.Role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("actor_role", actor.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) IsPrivileged(ctx context.Context, actor Actor) bool {
	return s.Authorize(ctx, actor, ObjectBoost, ActionBoostManageAny) == nil
}

// ensureGrouping keeps exactly one role link per subject so a role change in the
// upstream gateway takes effect on the next request.
func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func isKnownRole(role string) bool {
	switch role {
	case RoleSeller, RolePlatformOperator, RoleSystem:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Seller permissions. Ownership is checked by the boost service.
		{roleName(RoleSeller), ObjectBoost, ActionBoostPurchase},
		{roleName(RoleSeller), ObjectBoost, ActionBoostConfirm},
		{roleName(RoleSeller), ObjectBoost, ActionBoostCancel},
		{roleName(RoleSeller), ObjectBoost, ActionBoostAutoRenew},
		{roleName(RoleSeller), ObjectBoost, ActionBoostView},
		{roleName(RoleSeller), ObjectBoost, ActionBoostList},
		{roleName(RoleSeller), ObjectListing, ActionListingRank},

		// Platform operators act on any record.
		{roleName(RolePlatformOperator), ObjectBoost, "*"},
		{roleName(RolePlatformOperator), ObjectListing, "*"},
		{roleName(RolePlatformOperator), ObjectScheduler, ActionSchedulerRun},

		// Scheduler
		{roleName(RoleSystem), ObjectScheduler, ActionSchedulerRun},
		{roleName(RoleSystem), ObjectBoost, ActionBoostView},
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
