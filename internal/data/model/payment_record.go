package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentRecord 支付单模型, 一个订单可有多次支付尝试
type PaymentRecord struct {
	ID             uint64          `gorm:"primaryKey;column:payment_id"`
	PaymentNo      string          `gorm:"column:payment_no;uniqueIndex;size:64"`
	OrderID        uint64          `gorm:"column:order_id;index:idx_order_trade"`
	GatewayTradeNo string          `gorm:"column:gateway_trade_no;index:idx_order_trade;size:64"`
	Gateway        string          `gorm:"column:gateway;size:30"`
	Method         string          `gorm:"column:method;size:20"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(10,2)"`
	Fee            decimal.Decimal `gorm:"column:fee;type:decimal(10,2);default:0"`
	ReceivedAmount decimal.Decimal `gorm:"column:received_amount;type:decimal(10,2);default:0"`
	Status         string          `gorm:"column:status;size:20;index"`
	PayerIP        string          `gorm:"column:payer_ip;size:45"`
	RawRequest     datatypes.JSON  `gorm:"column:raw_request"`  // 出站请求原文
	RawResponse    datatypes.JSON  `gorm:"column:raw_response"` // 网关应答原文
	RawCallback    datatypes.JSON  `gorm:"column:raw_callback"` // 回调原文
	PaidAt         *time.Time      `gorm:"column:paid_at"`
	RefundedAt     *time.Time      `gorm:"column:refunded_at"`
	CancelledAt    *time.Time      `gorm:"column:cancelled_at"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (PaymentRecord) TableName() string { return "payment_record" }
