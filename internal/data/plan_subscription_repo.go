package data

import (
	"context"
	stderrors "errors"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// planSubscriptionRepo 平台套餐订阅仓库实现
type planSubscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlanSubscriptionRepo 创建平台套餐订阅仓库
func NewPlanSubscriptionRepo(data *Data, logger log.Logger) biz.PlanSubscriptionRepo {
	return &planSubscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toPlanSubModel(sub *biz.PlanSubscription) *model.PlanSubscription {
	return &model.PlanSubscription{
		ID:             sub.ID,
		SubscriberID:   sub.SubscriberID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		Price:          sub.Price,
		CreatorAmount:  sub.CreatorAmount,
		PlatformAmount: sub.PlatformAmount,
		AutoRenew:      sub.AutoRenew,
		RenewCount:     sub.RenewCount,
		StartedAt:      sub.StartedAt,
		ExpiresAt:      sub.ExpiresAt,
		LastRenewedAt:  sub.LastRenewedAt,
		CancelledAt:    sub.CancelledAt,
		CancelReason:   sub.CancelReason,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
	}
}

func toPlanSubBiz(m *model.PlanSubscription) *biz.PlanSubscription {
	return &biz.PlanSubscription{
		ID:             m.ID,
		SubscriberID:   m.SubscriberID,
		PlanID:         m.PlanID,
		Status:         m.Status,
		Price:          m.Price,
		CreatorAmount:  m.CreatorAmount,
		PlatformAmount: m.PlatformAmount,
		AutoRenew:      m.AutoRenew,
		RenewCount:     m.RenewCount,
		StartedAt:      m.StartedAt,
		ExpiresAt:      m.ExpiresAt,
		LastRenewedAt:  m.LastRenewedAt,
		CancelledAt:    m.CancelledAt,
		CancelReason:   m.CancelReason,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// CreateSubscription 创建套餐订阅并回填ID
func (r *planSubscriptionRepo) CreateSubscription(ctx context.Context, sub *biz.PlanSubscription) error {
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	m := toPlanSubModel(sub)
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create plan subscription for user %d plan %s: %v", sub.SubscriberID, sub.PlanID, err)
		return err
	}
	sub.ID = m.ID
	return nil
}

// GetSubscription 按ID查询, forUpdate 为 true 时加行锁
func (r *planSubscriptionRepo) GetSubscription(ctx context.Context, id uint64, forUpdate bool) (*biz.PlanSubscription, error) {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m model.PlanSubscription
	err := db.Where("plan_subscription_id = ?", id).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toPlanSubBiz(&m), nil
}

// GetByUser 查询用户最近一条套餐订阅
func (r *planSubscriptionRepo) GetByUser(ctx context.Context, userID uint64) (*biz.PlanSubscription, error) {
	var m model.PlanSubscription
	err := r.data.DB(ctx).
		Where("subscriber_id = ?", userID).
		Order("plan_subscription_id DESC").
		First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toPlanSubBiz(&m), nil
}

// UpdateSubscription 保存套餐订阅
func (r *planSubscriptionRepo) UpdateSubscription(ctx context.Context, sub *biz.PlanSubscription) error {
	sub.UpdatedAt = time.Now().UTC()
	if err := r.data.DB(ctx).Save(toPlanSubModel(sub)).Error; err != nil {
		r.log.Errorf("Failed to update plan subscription %d: %v", sub.ID, err)
		return err
	}
	return nil
}

// ListExpiredActive 查询已到期但仍为 active 的套餐订阅ID
func (r *planSubscriptionRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.data.DB(ctx).Model(&model.PlanSubscription{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", constants.SubStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("plan_subscription_id", &ids).Error
	if err != nil {
		r.log.Errorf("Failed to list expired plan subscriptions: %v", err)
		return nil, err
	}
	return ids, nil
}
