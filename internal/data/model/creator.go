package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatorProfile 创作者计费档案模型。
// total_earnings / total_platform_share 为冗余累计值, 随订阅行同事务累加
type CreatorProfile struct {
	UserID             uint64          `gorm:"primaryKey;column:user_id"`
	CommissionRate     decimal.Decimal `gorm:"column:commission_rate;type:decimal(5,2);default:0"`
	SubscriptionPrice  decimal.Decimal `gorm:"column:subscription_price;type:decimal(10,2)"`
	SubscriptionDays   int             `gorm:"column:subscription_days;default:30"`
	TotalEarnings      decimal.Decimal `gorm:"column:total_earnings;type:decimal(12,2);default:0"`
	TotalPlatformShare decimal.Decimal `gorm:"column:total_platform_share;type:decimal(12,2);default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (CreatorProfile) TableName() string { return "creator_profile" }

// PostPurchase 内容购买记录模型
type PostPurchase struct {
	ID        uint64          `gorm:"primaryKey;column:post_purchase_id"`
	UserID    uint64          `gorm:"column:user_id;uniqueIndex:idx_user_post"`
	PostID    uint64          `gorm:"column:post_id;uniqueIndex:idx_user_post"`
	CreatorID uint64          `gorm:"column:creator_id;index"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(10,2)"`
	CreatedAt time.Time       `gorm:"column:created_at"`
}

func (PostPurchase) TableName() string { return "post_purchase" }
