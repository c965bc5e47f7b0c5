package biz

import (
	"context"
	"time"

	"xinyuan_tech/creator-billing-service/internal/constants"

	"github.com/shopspring/decimal"
)

// PaymentRecord 一次支付尝试。一个订单可被重试多次, 但最多一笔到达 completed
type PaymentRecord struct {
	ID             uint64
	PaymentNo      string
	OrderID        uint64
	GatewayTradeNo string // 网关交易号, 网关受理前为空
	Gateway        string
	Method         string
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	ReceivedAmount decimal.Decimal
	Status         string // pending, processing, completed, failed, refunded, cancelled
	PayerIP        string
	RawRequest     []byte // 出站请求原文, 审计用
	RawResponse    []byte // 网关应答原文
	RawCallback    []byte // 回调原文
	PaidAt         *time.Time
	RefundedAt     *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal 支付单是否已到终态(completed 后仅允许 refunded)
func (p *PaymentRecord) IsTerminal() bool {
	switch p.Status {
	case constants.PaymentStatusCompleted, constants.PaymentStatusFailed,
		constants.PaymentStatusRefunded, constants.PaymentStatusCancelled:
		return true
	}
	return false
}

// NewPaymentNo 生成支付单号
func NewPaymentNo() string {
	return "PAY" + orderNode.Generate().String()
}

// PaymentRepo 支付单仓库接口
type PaymentRepo interface {
	CreatePayment(ctx context.Context, payment *PaymentRecord) error
	// GetOpenByOrderID 查询订单当前未完结的支付单, 不存在时返回 nil
	GetOpenByOrderID(ctx context.Context, orderID uint64) (*PaymentRecord, error)
	// GetByOrderAndTradeNo 按订单ID+网关交易号查询, 不存在时返回 nil
	GetByOrderAndTradeNo(ctx context.Context, orderID uint64, tradeNo string) (*PaymentRecord, error)
	UpdatePayment(ctx context.Context, payment *PaymentRecord) error
	// CancelOpenByOrderID 取消订单下所有未完结支付单
	CancelOpenByOrderID(ctx context.Context, orderID uint64, cancelledAt time.Time) error
}

// GatewayPaymentRequest 出站下单请求
type GatewayPaymentRequest struct {
	OrderNo     string
	AmountMinor int64 // 最小货币单位(分)
	PayerIP     string
	Method      string
}

// GatewayPaymentResponse 网关下单应答
type GatewayPaymentResponse struct {
	TradeNo     string
	RedirectURL string
	RawRequest  []byte
	RawResponse []byte
}

// GatewayClient 支付网关客户端接口 (防腐层)
type GatewayClient interface {
	CreatePayment(ctx context.Context, req *GatewayPaymentRequest) (*GatewayPaymentResponse, error)
}
