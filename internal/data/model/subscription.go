package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatorSubscription 创作者订阅模型
type CreatorSubscription struct {
	ID             uint64          `gorm:"primaryKey;column:creator_subscription_id"`
	SubscriberID   uint64          `gorm:"column:subscriber_id;index:idx_pair"`
	CreatorID      uint64          `gorm:"column:creator_id;index:idx_pair"`
	Status         string          `gorm:"column:status;size:20;index"`
	Price          decimal.Decimal `gorm:"column:price;type:decimal(10,2)"`
	CreatorAmount  decimal.Decimal `gorm:"column:creator_amount;type:decimal(10,2)"`
	PlatformAmount decimal.Decimal `gorm:"column:platform_amount;type:decimal(10,2)"`
	AutoRenew      bool            `gorm:"column:auto_renew;default:false"`
	RenewCount     int             `gorm:"column:renew_count;default:0"`
	StartedAt      *time.Time      `gorm:"column:started_at"`
	ExpiresAt      *time.Time      `gorm:"column:expires_at;index"`
	LastRenewedAt  *time.Time      `gorm:"column:last_renewed_at"`
	CancelledAt    *time.Time      `gorm:"column:cancelled_at"`
	CancelReason   string          `gorm:"column:cancel_reason;size:255"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (CreatorSubscription) TableName() string { return "creator_subscription" }

// PlanSubscription 平台套餐订阅模型
type PlanSubscription struct {
	ID             uint64          `gorm:"primaryKey;column:plan_subscription_id"`
	SubscriberID   uint64          `gorm:"column:subscriber_id;index"`
	PlanID         string          `gorm:"column:plan_id;size:64;index"`
	Status         string          `gorm:"column:status;size:20;index"`
	Price          decimal.Decimal `gorm:"column:price;type:decimal(10,2)"`
	CreatorAmount  decimal.Decimal `gorm:"column:creator_amount;type:decimal(10,2);default:0"`
	PlatformAmount decimal.Decimal `gorm:"column:platform_amount;type:decimal(10,2)"`
	AutoRenew      bool            `gorm:"column:auto_renew;default:false"`
	RenewCount     int             `gorm:"column:renew_count;default:0"`
	StartedAt      *time.Time      `gorm:"column:started_at"`
	ExpiresAt      *time.Time      `gorm:"column:expires_at;index"`
	LastRenewedAt  *time.Time      `gorm:"column:last_renewed_at"`
	CancelledAt    *time.Time      `gorm:"column:cancelled_at"`
	CancelReason   string          `gorm:"column:cancel_reason;size:255"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (PlanSubscription) TableName() string { return "plan_subscription" }

// Plan 平台套餐模型
type Plan struct {
	PlanID       string          `gorm:"primaryKey;column:plan_id;size:64"`
	Name         string          `gorm:"column:name;size:100"`
	Description  string          `gorm:"column:description;size:500"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(10,2)"`
	DurationDays int             `gorm:"column:duration_days"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (Plan) TableName() string { return "plan" }
