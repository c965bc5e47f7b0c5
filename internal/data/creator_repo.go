package data

import (
	"context"
	stderrors "errors"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// creatorRepo 创作者档案仓库实现
type creatorRepo struct {
	data *Data
	log  *log.Helper
}

// NewCreatorRepo 创建创作者档案仓库
func NewCreatorRepo(data *Data, logger log.Logger) biz.CreatorRepo {
	return &creatorRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetCreator 查询创作者档案, forUpdate 为 true 时加行锁
func (r *creatorRepo) GetCreator(ctx context.Context, creatorID uint64, forUpdate bool) (*biz.CreatorProfile, error) {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m model.CreatorProfile
	err := db.Where("user_id = ?", creatorID).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get creator %d: %v", creatorID, err)
		return nil, err
	}
	return &biz.CreatorProfile{
		UserID:             m.UserID,
		CommissionRate:     m.CommissionRate,
		SubscriptionPrice:  m.SubscriptionPrice,
		SubscriptionDays:   m.SubscriptionDays,
		TotalEarnings:      m.TotalEarnings,
		TotalPlatformShare: m.TotalPlatformShare,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}

// AddRevenue 累加收入统计
func (r *creatorRepo) AddRevenue(ctx context.Context, creatorID uint64, creatorAmount, platformAmount decimal.Decimal) error {
	err := r.data.DB(ctx).Model(&model.CreatorProfile{}).
		Where("user_id = ?", creatorID).
		Updates(map[string]interface{}{
			"total_earnings":       gorm.Expr("total_earnings + ?", creatorAmount),
			"total_platform_share": gorm.Expr("total_platform_share + ?", platformAmount),
			"updated_at":           time.Now().UTC(),
		}).Error
	if err != nil {
		r.log.Errorf("Failed to add revenue for creator %d: %v", creatorID, err)
		return err
	}
	return nil
}

// SetRevenue 覆写收入统计
func (r *creatorRepo) SetRevenue(ctx context.Context, creatorID uint64, totalEarnings, totalPlatformShare decimal.Decimal) error {
	err := r.data.DB(ctx).Model(&model.CreatorProfile{}).
		Where("user_id = ?", creatorID).
		Updates(map[string]interface{}{
			"total_earnings":       totalEarnings,
			"total_platform_share": totalPlatformShare,
			"updated_at":           time.Now().UTC(),
		}).Error
	if err != nil {
		r.log.Errorf("Failed to set revenue for creator %d: %v", creatorID, err)
		return err
	}
	return nil
}
