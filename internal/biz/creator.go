package biz

import (
	"context"
	"time"

	"xinyuan_tech/creator-billing-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/shopspring/decimal"
)

// CreatorProfile 创作者档案中计费相关的部分。
// TotalEarnings / TotalPlatformShare 是冗余累计值, 必须与该创作者
// 全部订阅行的 creator_amount / platform_amount 之和一致
type CreatorProfile struct {
	UserID            uint64
	CommissionRate    decimal.Decimal // 平台抽成比例(百分比), 如 30.00
	SubscriptionPrice decimal.Decimal // 订阅价格
	SubscriptionDays  int             // 订阅时长(天)
	TotalEarnings     decimal.Decimal
	TotalPlatformShare decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreatorRepo 创作者档案仓库接口
type CreatorRepo interface {
	// GetCreator 查询创作者档案, forUpdate 为 true 时加行锁。
	// 订阅流程靠锁创作者行串行化同一创作者下的并发订阅
	GetCreator(ctx context.Context, creatorID uint64, forUpdate bool) (*CreatorProfile, error)
	// AddRevenue 累加收入统计, 必须与订阅行的写入在同一事务内
	AddRevenue(ctx context.Context, creatorID uint64, creatorAmount, platformAmount decimal.Decimal) error
	// SetRevenue 覆写收入统计(对账回填用)
	SetRevenue(ctx context.Context, creatorID uint64, totalEarnings, totalPlatformShare decimal.Decimal) error
}

// RevenueReconcileResult 创作者收入对账结果
type RevenueReconcileResult struct {
	CreatorID          uint64
	SubEarnings        decimal.Decimal
	SubPlatformShare   decimal.Decimal
	TotalEarnings      decimal.Decimal
	TotalPlatformShare decimal.Decimal
	Consistent         bool
	Repaired           bool
}

// ReconcileCreatorRevenue 核对创作者收入累计值与订阅行之和, repair 为 true 时回填修复
func (uc *SubscriptionUsecase) ReconcileCreatorRevenue(ctx context.Context, creatorID uint64, repair bool) (*RevenueReconcileResult, error) {
	creator, err := uc.creatorRepo.GetCreator(ctx, creatorID, false)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCreatorNotFound)
	}

	earned, platform, err := uc.subRepo.SumRevenueByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	result := &RevenueReconcileResult{
		CreatorID:          creatorID,
		SubEarnings:        earned,
		SubPlatformShare:   platform,
		TotalEarnings:      creator.TotalEarnings,
		TotalPlatformShare: creator.TotalPlatformShare,
		Consistent:         earned.Equal(creator.TotalEarnings) && platform.Equal(creator.TotalPlatformShare),
	}

	if !result.Consistent {
		uc.log.Errorf("creator revenue drift: creator=%d subs=(%s, %s) aggregate=(%s, %s)",
			creatorID, earned, platform, creator.TotalEarnings, creator.TotalPlatformShare)
		if repair {
			if err := uc.creatorRepo.SetRevenue(ctx, creatorID, earned, platform); err != nil {
				return nil, err
			}
			result.Repaired = true
		}
	}
	return result, nil
}
