package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order 订单模型
type Order struct {
	ID          uint64          `gorm:"primaryKey;column:order_id"`
	OrderNo     string          `gorm:"column:order_no;uniqueIndex;size:64"`
	UserID      uint64          `gorm:"column:user_id;index"`
	Type        string          `gorm:"column:type;size:20"` // recharge, subscription, post_purchase
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(10,2)"`
	Status      string          `gorm:"column:status;size:20;index"` // pending, completed, failed, refunded
	Method      string          `gorm:"column:method;size:20"`
	Metadata    datatypes.JSON  `gorm:"column:metadata"`
	RelatedKind string          `gorm:"column:related_kind;size:30"`
	RelatedID   uint64          `gorm:"column:related_id"`
	FailReason  string          `gorm:"column:fail_reason;size:255"`
	PaidAt      *time.Time      `gorm:"column:paid_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;index"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (Order) TableName() string { return "billing_order" }
