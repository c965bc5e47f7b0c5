package data

import (
	"context"
	stderrors "errors"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// creatorSubscriptionRepo 创作者订阅仓库实现
type creatorSubscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewCreatorSubscriptionRepo 创建创作者订阅仓库
func NewCreatorSubscriptionRepo(data *Data, logger log.Logger) biz.CreatorSubscriptionRepo {
	return &creatorSubscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toCreatorSubModel(sub *biz.CreatorSubscription) *model.CreatorSubscription {
	return &model.CreatorSubscription{
		ID:             sub.ID,
		SubscriberID:   sub.SubscriberID,
		CreatorID:      sub.CreatorID,
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

func toCreatorSubBiz(m *model.CreatorSubscription) *biz.CreatorSubscription {
	return &biz.CreatorSubscription{
		ID:             m.ID,
		SubscriberID:   m.SubscriberID,
		CreatorID:      m.CreatorID,
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

// CreateSubscription 创建订阅并回填ID
func (r *creatorSubscriptionRepo) CreateSubscription(ctx context.Context, sub *biz.CreatorSubscription) error {
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	m := toCreatorSubModel(sub)
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create subscription for subscriber %d creator %d: %v", sub.SubscriberID, sub.CreatorID, err)
		return err
	}
	sub.ID = m.ID
	return nil
}

// GetSubscription 按ID查询, forUpdate 为 true 时加行锁
func (r *creatorSubscriptionRepo) GetSubscription(ctx context.Context, id uint64, forUpdate bool) (*biz.CreatorSubscription, error) {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m model.CreatorSubscription
	err := db.Where("creator_subscription_id = ?", id).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toCreatorSubBiz(&m), nil
}

// GetByPair 查询订阅者对创作者的最近一条订阅
func (r *creatorSubscriptionRepo) GetByPair(ctx context.Context, subscriberID, creatorID uint64) (*biz.CreatorSubscription, error) {
	var m model.CreatorSubscription
	err := r.data.DB(ctx).
		Where("subscriber_id = ? AND creator_id = ?", subscriberID, creatorID).
		Order("creator_subscription_id DESC").
		First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toCreatorSubBiz(&m), nil
}

// GetActiveByPair 查询订阅者对创作者的活跃订阅
func (r *creatorSubscriptionRepo) GetActiveByPair(ctx context.Context, subscriberID, creatorID uint64) (*biz.CreatorSubscription, error) {
	var m model.CreatorSubscription
	err := r.data.DB(ctx).
		Where("subscriber_id = ? AND creator_id = ? AND status IN ?", subscriberID, creatorID,
			[]string{constants.SubStatusActive, constants.SubStatusTrial}).
		Order("creator_subscription_id DESC").
		First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toCreatorSubBiz(&m), nil
}

// UpdateSubscription 保存订阅
func (r *creatorSubscriptionRepo) UpdateSubscription(ctx context.Context, sub *biz.CreatorSubscription) error {
	sub.UpdatedAt = time.Now().UTC()
	if err := r.data.DB(ctx).Save(toCreatorSubModel(sub)).Error; err != nil {
		r.log.Errorf("Failed to update subscription %d: %v", sub.ID, err)
		return err
	}
	return nil
}

// ListExpiredActive 查询已到期但仍为 active 的订阅ID
func (r *creatorSubscriptionRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.data.DB(ctx).Model(&model.CreatorSubscription{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", constants.SubStatusActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("creator_subscription_id", &ids).Error
	if err != nil {
		r.log.Errorf("Failed to list expired subscriptions: %v", err)
		return nil, err
	}
	return ids, nil
}

// SumRevenueByCreator 汇总创作者全部订阅行的分成金额
func (r *creatorSubscriptionRepo) SumRevenueByCreator(ctx context.Context, creatorID uint64) (decimal.Decimal, decimal.Decimal, error) {
	var row struct {
		CreatorAmount  decimal.NullDecimal
		PlatformAmount decimal.NullDecimal
	}
	err := r.data.DB(ctx).Model(&model.CreatorSubscription{}).
		Select("SUM(creator_amount) AS creator_amount, SUM(platform_amount) AS platform_amount").
		Where("creator_id = ?", creatorID).
		Scan(&row).Error
	if err != nil {
		r.log.Errorf("Failed to sum revenue for creator %d: %v", creatorID, err)
		return decimal.Zero, decimal.Zero, err
	}
	creatorAmount := decimal.Zero
	if row.CreatorAmount.Valid {
		creatorAmount = row.CreatorAmount.Decimal
	}
	platformAmount := decimal.Zero
	if row.PlatformAmount.Valid {
		platformAmount = row.PlatformAmount.Decimal
	}
	return creatorAmount, platformAmount, nil
}
