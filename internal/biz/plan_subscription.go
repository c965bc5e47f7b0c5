package biz

import (
	"context"
	"time"

	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/shopspring/decimal"
)

// Plan 平台会员套餐
type Plan struct {
	PlanID       string
	Name         string
	Description  string
	Price        decimal.Decimal
	DurationDays int // 0 表示不过期
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlanRepo 套餐仓库接口
type PlanRepo interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	ListPlans(ctx context.Context) ([]*Plan, error)
	// GetPlan 不存在时返回 nil
	GetPlan(ctx context.Context, planID string) (*Plan, error)
}

// PlanSubscription 平台套餐订阅。走订单+网关支付流程:
// 下单时创建为 pending, 支付确认后才激活, 假网关与真网关走同一条路径
type PlanSubscription struct {
	ID             uint64
	SubscriberID   uint64
	PlanID         string
	Status         string
	Price          decimal.Decimal
	CreatorAmount  decimal.Decimal // 平台套餐无创作者, 恒为 0, 与创作者订阅同构
	PlatformAmount decimal.Decimal
	AutoRenew      bool
	RenewCount     int
	StartedAt      *time.Time
	ExpiresAt      *time.Time // nil 表示不过期
	LastRenewedAt  *time.Time
	CancelledAt    *time.Time
	CancelReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlanSubscriptionRepo 平台套餐订阅仓库接口
type PlanSubscriptionRepo interface {
	CreateSubscription(ctx context.Context, sub *PlanSubscription) error
	GetSubscription(ctx context.Context, id uint64, forUpdate bool) (*PlanSubscription, error)
	// GetByUser 查询用户最近一条套餐订阅, 不存在时返回 nil
	GetByUser(ctx context.Context, userID uint64) (*PlanSubscription, error)
	UpdateSubscription(ctx context.Context, sub *PlanSubscription) error
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

// CreatePlan 创建平台套餐
func (uc *SubscriptionUsecase) CreatePlan(ctx context.Context, plan *Plan) error {
	if plan.PlanID == "" || !plan.Price.IsPositive() {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePlanInvalid)
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	return uc.planRepo.CreatePlan(ctx, plan)
}

// ListPlans 获取所有套餐
func (uc *SubscriptionUsecase) ListPlans(ctx context.Context) ([]*Plan, error) {
	return uc.planRepo.ListPlans(ctx)
}

// GetPlan 获取套餐, 不存在时返回业务错误
func (uc *SubscriptionUsecase) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	plan, err := uc.planRepo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePlanNotFound)
	}
	return plan, nil
}

// CreatePendingPlanSubscription 下单时创建 pending 订阅, 等待支付确认
func (uc *SubscriptionUsecase) CreatePendingPlanSubscription(ctx context.Context, userID uint64, plan *Plan) (*PlanSubscription, error) {
	now := time.Now().UTC()
	sub := &PlanSubscription{
		SubscriberID:   userID,
		PlanID:         plan.PlanID,
		Status:         constants.SubStatusPending,
		Price:          plan.Price,
		PlatformAmount: plan.Price, // 平台套餐收入全额归平台
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.planSubRepo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ActivatePlanSubscription 支付确认后的激活。必须在回调对账事务内调用。
// 已激活的订阅按续费处理: 从 max(now, 到期时间) 起延长
func (uc *SubscriptionUsecase) ActivatePlanSubscription(ctx context.Context, subscriptionID uint64) error {
	sub, err := uc.planSubRepo.GetSubscription(ctx, subscriptionID, true)
	if err != nil {
		return err
	}
	if sub == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSubscriptionNotFound)
	}

	plan, err := uc.planRepo.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return err
	}
	if plan == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePlanNotFound)
	}

	now := time.Now().UTC()
	switch sub.Status {
	case constants.SubStatusPending:
		sub.Status = constants.SubStatusActive
		if sub.StartedAt == nil {
			sub.StartedAt = &now
		}
		if plan.DurationDays > 0 {
			expires := now.AddDate(0, 0, plan.DurationDays)
			sub.ExpiresAt = &expires
		}
	case constants.SubStatusActive, constants.SubStatusExpired, constants.SubStatusCancelled:
		// 重复购买同一套餐 = 续费
		base := now
		if sub.ExpiresAt != nil && sub.ExpiresAt.After(now) {
			base = *sub.ExpiresAt
		}
		if plan.DurationDays > 0 {
			expires := base.AddDate(0, 0, plan.DurationDays)
			sub.ExpiresAt = &expires
		}
		sub.Status = constants.SubStatusActive
		sub.RenewCount++
		sub.LastRenewedAt = &now
		sub.CancelledAt = nil
		sub.CancelReason = ""
		sub.Price = sub.Price.Add(plan.Price)
		sub.PlatformAmount = sub.PlatformAmount.Add(plan.Price)
	default:
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCannotRenewStatus)
	}
	sub.UpdatedAt = now

	return uc.planSubRepo.UpdateSubscription(ctx, sub)
}

// CancelPlanSubscription 取消套餐订阅
func (uc *SubscriptionUsecase) CancelPlanSubscription(ctx context.Context, userID uint64, reason string) error {
	sub, err := uc.planSubRepo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSubscriptionNotFound)
	}
	if sub.Status == constants.SubStatusCancelled || sub.Status == constants.SubStatusExpired {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCannotCancelStatus)
	}

	now := time.Now().UTC()
	sub.Status = constants.SubStatusCancelled
	sub.AutoRenew = false
	sub.CancelledAt = &now
	sub.CancelReason = reason
	sub.UpdatedAt = now
	return uc.planSubRepo.UpdateSubscription(ctx, sub)
}

// expireDuePlanSubscriptions 套餐订阅过期清扫, 与创作者订阅同批执行
func (uc *SubscriptionUsecase) expireDuePlanSubscriptions(ctx context.Context, now time.Time) (expired, skipped int, err error) {
	ids, err := uc.planSubRepo.ListExpiredActive(ctx, now, constants.ExpireSweepBatchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		err := uc.tm.Exec(ctx, func(ctx context.Context) error {
			sub, err := uc.planSubRepo.GetSubscription(ctx, id, true)
			if err != nil {
				return err
			}
			if sub == nil || sub.Status != constants.SubStatusActive {
				return nil
			}
			if sub.ExpiresAt == nil || sub.ExpiresAt.After(now) {
				return nil
			}
			sub.Status = constants.SubStatusExpired
			sub.UpdatedAt = now
			return uc.planSubRepo.UpdateSubscription(ctx, sub)
		})
		if err != nil {
			uc.log.Errorf("Failed to expire plan subscription %d: %v", id, err)
			skipped++
			continue
		}
		expired++
	}
	return expired, skipped, nil
}
