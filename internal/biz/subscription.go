package biz

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/creator-billing-service/internal/conf"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/shopspring/decimal"
)

// CreatorSubscription 创作者订阅。收入在订阅成立时确认, 取消不回溯
type CreatorSubscription struct {
	ID             uint64
	SubscriberID   uint64
	CreatorID      uint64
	Status         string // pending, active, trial, cancelled, expired, suspended
	Price          decimal.Decimal // 累计支付金额
	CreatorAmount  decimal.Decimal
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

// CreatorSubscriptionRepo 创作者订阅仓库接口
type CreatorSubscriptionRepo interface {
	CreateSubscription(ctx context.Context, sub *CreatorSubscription) error
	GetSubscription(ctx context.Context, id uint64, forUpdate bool) (*CreatorSubscription, error)
	// GetByPair 查询订阅者对创作者的最近一条订阅, 不存在时返回 nil
	GetByPair(ctx context.Context, subscriberID, creatorID uint64) (*CreatorSubscription, error)
	// GetActiveByPair 查询订阅者对创作者的活跃订阅, 不存在时返回 nil
	GetActiveByPair(ctx context.Context, subscriberID, creatorID uint64) (*CreatorSubscription, error)
	UpdateSubscription(ctx context.Context, sub *CreatorSubscription) error
	// ListExpiredActive 查询已到期但仍为 active 的订阅ID
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	// SumRevenueByCreator 汇总创作者全部订阅行的分成金额(对账用)
	SumRevenueByCreator(ctx context.Context, creatorID uint64) (creatorAmount, platformAmount decimal.Decimal, err error)
}

// SubscriptionUsecase 订阅生命周期业务逻辑
type SubscriptionUsecase struct {
	subRepo     CreatorSubscriptionRepo
	planRepo    PlanRepo
	planSubRepo PlanSubscriptionRepo
	creatorRepo CreatorRepo
	ledgerRepo  LedgerRepo
	config      *conf.Bootstrap
	tm          Transaction
	rs          *redsync.Redsync
	log         *log.Helper
}

// NewSubscriptionUsecase 创建订阅业务用例
func NewSubscriptionUsecase(
	subRepo CreatorSubscriptionRepo,
	planRepo PlanRepo,
	planSubRepo PlanSubscriptionRepo,
	creatorRepo CreatorRepo,
	ledgerRepo LedgerRepo,
	config *conf.Bootstrap,
	tm Transaction,
	rs *redsync.Redsync,
	logger log.Logger,
) *SubscriptionUsecase {
	return &SubscriptionUsecase{
		subRepo:     subRepo,
		planRepo:    planRepo,
		planSubRepo: planSubRepo,
		creatorRepo: creatorRepo,
		ledgerRepo:  ledgerRepo,
		config:      config,
		tm:          tm,
		rs:          rs,
		log:         log.NewHelper(logger),
	}
}

// SubscribeToCreator 订阅创作者。从余额扣款, 单事务内完成
// 扣款/分成入账/收入统计, 任何一步失败则整体回滚
func (uc *SubscriptionUsecase) SubscribeToCreator(ctx context.Context, subscriberID, creatorID uint64) (*CreatorSubscription, error) {
	uc.log.Infof("SubscribeToCreator: subscriber=%d, creator=%d", subscriberID, creatorID)

	var result *CreatorSubscription
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		// 锁创作者行: 同一创作者下的并发订阅在此串行化,
		// 同一对 (subscriber, creator) 不可能同时成立两条活跃订阅
		creator, err := uc.creatorRepo.GetCreator(ctx, creatorID, true)
		if err != nil {
			return err
		}
		if creator == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCreatorNotFound)
		}

		// 活跃订阅去重
		existing, err := uc.subRepo.GetActiveByPair(ctx, subscriberID, creatorID)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeAlreadySubscribed)
		}

		price := creator.SubscriptionPrice
		creatorAmount, platformAmount := SplitRevenue(price, uc.commissionRate(creator))

		now := time.Now().UTC()
		days := creator.SubscriptionDays
		if days <= 0 {
			days = constants.DefaultSubscriptionDays
		}
		expiresAt := now.AddDate(0, 0, days)

		sub := &CreatorSubscription{
			SubscriberID:   subscriberID,
			CreatorID:      creatorID,
			Status:         constants.SubStatusActive,
			Price:          price,
			CreatorAmount:  creatorAmount,
			PlatformAmount: platformAmount,
			StartedAt:      &now,
			ExpiresAt:      &expiresAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := uc.subRepo.CreateSubscription(ctx, sub); err != nil {
			return err
		}

		if err := uc.settleCreatorRevenue(ctx, sub, price, creatorAmount, platformAmount); err != nil {
			return err
		}

		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Infof("Subscription created: id=%d, subscriber=%d, creator=%d, split=(%s, %s)",
		result.ID, subscriberID, creatorID, result.CreatorAmount, result.PlatformAmount)
	return result, nil
}

// settleCreatorRevenue 订阅成交的资金动作: 扣订阅者余额, 创作者和平台
// 分别入账, 累加创作者收入统计。必须在事务内调用
func (uc *SubscriptionUsecase) settleCreatorRevenue(ctx context.Context, sub *CreatorSubscription, price, creatorAmount, platformAmount decimal.Decimal) error {
	related := RelatedRef{Kind: constants.RelatedKindCreatorSub, ID: sub.ID}

	// 扣订阅者余额。余额不足会在这里失败并回滚整个事务
	if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
		Stream:    constants.LedgerStreamCredit,
		OwnerType: constants.LedgerOwnerUser,
		OwnerID:   sub.SubscriberID,
		Amount:    price.Neg(),
		Type:      constants.LedgerTypeSpent,
		Reason:    constants.LedgerReasonSubscribeCreator,
		Metadata:  map[string]string{"creator_id": fmt.Sprintf("%d", sub.CreatorID)},
		Related:   related,
	}); err != nil {
		return err
	}

	// 创作者分成入账
	if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
		Stream:    constants.LedgerStreamCredit,
		OwnerType: constants.LedgerOwnerUser,
		OwnerID:   sub.CreatorID,
		Amount:    creatorAmount,
		Type:      constants.LedgerTypeEarned,
		Reason:    constants.LedgerReasonCreatorEarnings,
		Metadata:  map[string]string{"subscriber_id": fmt.Sprintf("%d", sub.SubscriberID)},
		Related:   related,
	}); err != nil {
		return err
	}

	// 平台抽成入账(平台归集账户, 独立可审计)
	if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
		Stream:    constants.LedgerStreamCredit,
		OwnerType: constants.LedgerOwnerPlatform,
		OwnerID:   constants.PlatformAccountID,
		Amount:    platformAmount,
		Type:      constants.LedgerTypeEarned,
		Reason:    constants.LedgerReasonPlatformCommission,
		Related:   related,
	}); err != nil {
		return err
	}

	// 收入统计与订阅行同事务累加, 不走任何模型钩子或事件总线
	return uc.creatorRepo.AddRevenue(ctx, sub.CreatorID, creatorAmount, platformAmount)
}

// commissionRate 创作者抽成比例, 未配置时取全局默认值
func (uc *SubscriptionUsecase) commissionRate(creator *CreatorProfile) decimal.Decimal {
	if creator.CommissionRate.IsPositive() {
		return creator.CommissionRate
	}
	if uc.config != nil && uc.config.Billing != nil && uc.config.Billing.DefaultCommissionRate != "" {
		if rate, err := decimal.NewFromString(uc.config.Billing.DefaultCommissionRate); err == nil {
			return rate
		}
	}
	return decimal.NewFromInt(30)
}

// CancelSubscription 取消订阅。关闭自动续费, 已确认的收入不回溯
func (uc *SubscriptionUsecase) CancelSubscription(ctx context.Context, subscriberID, creatorID uint64, reason string) error {
	uc.log.Infof("CancelSubscription: subscriber=%d, creator=%d, reason=%s", subscriberID, creatorID, reason)

	sub, err := uc.subRepo.GetByPair(ctx, subscriberID, creatorID)
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

	return uc.subRepo.UpdateSubscription(ctx, sub)
}

// RenewCreatorSubscription 续费订阅。从当前到期时间和现在中较晚者起延长,
// 不吞掉已付费的剩余时长。cancelled/expired 的订阅通过续费重新进入 active
func (uc *SubscriptionUsecase) RenewCreatorSubscription(ctx context.Context, subscriberID, creatorID uint64) (*CreatorSubscription, error) {
	uc.log.Infof("RenewCreatorSubscription: subscriber=%d, creator=%d", subscriberID, creatorID)

	var result *CreatorSubscription
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		creator, err := uc.creatorRepo.GetCreator(ctx, creatorID, true)
		if err != nil {
			return err
		}
		if creator == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCreatorNotFound)
		}

		sub, err := uc.subRepo.GetByPair(ctx, subscriberID, creatorID)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSubscriptionNotFound)
		}
		switch sub.Status {
		case constants.SubStatusActive, constants.SubStatusCancelled, constants.SubStatusExpired:
		default:
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCannotRenewStatus)
		}

		price := creator.SubscriptionPrice
		creatorAmount, platformAmount := SplitRevenue(price, uc.commissionRate(creator))

		now := time.Now().UTC()
		days := creator.SubscriptionDays
		if days <= 0 {
			days = constants.DefaultSubscriptionDays
		}
		extendSubscription(sub, now, days)
		sub.Status = constants.SubStatusActive
		sub.CancelledAt = nil
		sub.CancelReason = ""
		// 续费金额并入订阅行累计, 与收入统计保持同一口径
		sub.Price = sub.Price.Add(price)
		sub.CreatorAmount = sub.CreatorAmount.Add(creatorAmount)
		sub.PlatformAmount = sub.PlatformAmount.Add(platformAmount)
		sub.UpdatedAt = now

		if err := uc.subRepo.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		if err := uc.settleCreatorRevenue(ctx, sub, price, creatorAmount, platformAmount); err != nil {
			return err
		}

		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// extendSubscription 从 max(now, 当前到期时间) 起延长 days 天
func extendSubscription(sub *CreatorSubscription, now time.Time, days int) {
	base := now
	if sub.ExpiresAt != nil && sub.ExpiresAt.After(now) {
		base = *sub.ExpiresAt
	}
	expires := base.AddDate(0, 0, days)
	sub.ExpiresAt = &expires
	sub.RenewCount++
	sub.LastRenewedAt = &now
	if sub.StartedAt == nil {
		sub.StartedAt = &now
	}
}

// SetAutoRenew 设置自动续费
func (uc *SubscriptionUsecase) SetAutoRenew(ctx context.Context, subscriberID, creatorID uint64, autoRenew bool) error {
	sub, err := uc.subRepo.GetActiveByPair(ctx, subscriberID, creatorID)
	if err != nil {
		return err
	}
	if sub == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSubscriptionNotFound)
	}

	sub.AutoRenew = autoRenew
	sub.UpdatedAt = time.Now().UTC()
	return uc.subRepo.UpdateSubscription(ctx, sub)
}

// SuspendSubscription 管理员暂停订阅
func (uc *SubscriptionUsecase) SuspendSubscription(ctx context.Context, subscriptionID uint64) error {
	return uc.tm.Exec(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetSubscription(ctx, subscriptionID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSubscriptionNotFound)
		}
		if sub.Status != constants.SubStatusActive {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCannotSuspendStatus)
		}
		sub.Status = constants.SubStatusSuspended
		sub.UpdatedAt = time.Now().UTC()
		return uc.subRepo.UpdateSubscription(ctx, sub)
	})
}

// ResumeSubscription 管理员恢复被暂停的订阅
func (uc *SubscriptionUsecase) ResumeSubscription(ctx context.Context, subscriptionID uint64) error {
	return uc.tm.Exec(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetSubscription(ctx, subscriptionID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSubscriptionNotFound)
		}
		if sub.Status != constants.SubStatusSuspended {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCannotResumeStatus)
		}
		sub.Status = constants.SubStatusActive
		sub.UpdatedAt = time.Now().UTC()
		return uc.subRepo.UpdateSubscription(ctx, sub)
	})
}

// SubscriptionStatus 协作方查询用的订阅状态
const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
	SubscriptionStatusNone    = "none"
)

// GetSubscriptionStatus 查询订阅者对创作者的订阅状态: active / expired / none
func (uc *SubscriptionUsecase) GetSubscriptionStatus(ctx context.Context, subscriberID, creatorID uint64) (string, error) {
	sub, err := uc.subRepo.GetByPair(ctx, subscriberID, creatorID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return SubscriptionStatusNone, nil
	}
	switch sub.Status {
	case constants.SubStatusActive, constants.SubStatusTrial:
		// 到期但清扫任务还没跑到的, 按 expired 返回
		if sub.ExpiresAt != nil && !sub.ExpiresAt.After(time.Now().UTC()) {
			return SubscriptionStatusExpired, nil
		}
		return SubscriptionStatusActive, nil
	case constants.SubStatusExpired:
		return SubscriptionStatusExpired, nil
	default:
		return SubscriptionStatusNone, nil
	}
}

// ExpireDueSubscriptions 过期清扫入口。分布式锁内逐行过期,
// 单行失败不阻塞其他行
func (uc *SubscriptionUsecase) ExpireDueSubscriptions(ctx context.Context) (expired, skipped int, err error) {
	mutex := uc.rs.NewMutex(
		constants.ExpireSweepLockKey,
		redsync.WithExpiry(constants.SweepLockExpiration),
		redsync.WithTries(constants.SweepLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("Expire sweep skipped: lock busy")
		return 0, 0, nil
	}
	defer func() {
		if _, unlockErr := mutex.UnlockContext(ctx); unlockErr != nil {
			uc.log.Warnf("Failed to unlock expire sweep: %v", unlockErr)
		}
	}()

	return uc.expireDueSubscriptions(ctx)
}

// expireDueSubscriptions 过期清扫主体。重复执行是空操作:
// 每行在事务内重读并校验状态后才落 expired
func (uc *SubscriptionUsecase) expireDueSubscriptions(ctx context.Context) (expired, skipped int, err error) {
	now := time.Now().UTC()

	ids, err := uc.subRepo.ListExpiredActive(ctx, now, constants.ExpireSweepBatchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if err := uc.expireOne(ctx, id, now); err != nil {
			uc.log.Errorf("Failed to expire subscription %d: %v", id, err)
			skipped++
			continue
		}
		expired++
	}

	planExpired, planSkipped, err := uc.expireDuePlanSubscriptions(ctx, now)
	if err != nil {
		return expired, skipped, err
	}
	expired += planExpired
	skipped += planSkipped

	uc.log.Infof("Expire sweep finished: expired=%d, skipped=%d", expired, skipped)
	return expired, skipped, nil
}

// expireOne 单行过期, 独立事务
func (uc *SubscriptionUsecase) expireOne(ctx context.Context, id uint64, now time.Time) error {
	return uc.tm.Exec(ctx, func(ctx context.Context) error {
		sub, err := uc.subRepo.GetSubscription(ctx, id, true)
		if err != nil {
			return err
		}
		// 已被其他实例处理过, 幂等跳过
		if sub == nil || sub.Status != constants.SubStatusActive {
			return nil
		}
		if sub.ExpiresAt == nil || sub.ExpiresAt.After(now) {
			return nil
		}
		sub.Status = constants.SubStatusExpired
		sub.UpdatedAt = now
		return uc.subRepo.UpdateSubscription(ctx, sub)
	})
}
