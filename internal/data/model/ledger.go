package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LedgerEntry 账本条目模型, 只追加不更新
type LedgerEntry struct {
	ID          uint64          `gorm:"primaryKey;column:ledger_entry_id"`
	Stream      string          `gorm:"column:stream;size:10;index:idx_owner_stream"` // credit, point
	OwnerType   string          `gorm:"column:owner_type;size:10;index:idx_owner_stream"`
	OwnerID     uint64          `gorm:"column:owner_id;index:idx_owner_stream"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(10,2)"` // 带符号
	Type        string          `gorm:"column:type;size:20"`              // earned, spent, deducted, refunded
	Reason      string          `gorm:"column:reason;size:50;index"`
	Metadata    datatypes.JSON  `gorm:"column:metadata"`
	RelatedKind string          `gorm:"column:related_kind;size:30"`
	RelatedID   uint64          `gorm:"column:related_id"`
	CreatedAt   time.Time       `gorm:"column:created_at;index"`
}

func (LedgerEntry) TableName() string { return "ledger_entry" }

// AccountBalance 余额快照行, 只能随账本条目在同一事务内变更
type AccountBalance struct {
	ID        uint64          `gorm:"primaryKey;column:account_balance_id"`
	OwnerType string          `gorm:"column:owner_type;size:10;uniqueIndex:idx_owner"`
	OwnerID   uint64          `gorm:"column:owner_id;uniqueIndex:idx_owner"`
	Credits   decimal.Decimal `gorm:"column:credits;type:decimal(12,2);default:0"`
	Points    decimal.Decimal `gorm:"column:points;type:decimal(12,2);default:0"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (AccountBalance) TableName() string { return "account_balance" }
