package biz

import (
	"context"
	"time"

	"xinyuan_tech/creator-billing-service/internal/constants"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// 订单号生成节点。snowflake 本身带时间戳+序列号, 跨实例冲突由节点ID隔离
var orderNode *snowflake.Node

func init() {
	var err error
	orderNode, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// Order 支付意图, 每次充值/订阅购买/内容购买对应一条
type Order struct {
	ID        uint64
	OrderNo   string
	UserID    uint64
	Type      string // recharge, subscription, post_purchase
	Amount    decimal.Decimal
	Status    string // pending, completed, failed, refunded
	Method    string
	Metadata  OrderMetadata
	Related   RelatedRef
	FailReason string
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderMetadata 订单附加信息, 按订单类型使用其中的字段
type OrderMetadata struct {
	PackageID string          `json:"package_id,omitempty"` // 充值套餐ID
	Bonus     decimal.Decimal `json:"bonus,omitempty"`      // 充值赠送金额
	PlanID    string          `json:"plan_id,omitempty"`    // 平台套餐ID
	PostID    uint64          `json:"post_id,omitempty"`    // 内容ID
}

// IsTerminal 订单是否已到终态
func (o *Order) IsTerminal() bool {
	return o.Status == constants.OrderStatusCompleted ||
		o.Status == constants.OrderStatusFailed ||
		o.Status == constants.OrderStatusRefunded
}

// NewOrderNo 生成订单号, 按订单类型加前缀
func NewOrderNo(orderType string) string {
	prefix := "O"
	switch orderType {
	case constants.OrderTypeRecharge:
		prefix = "R"
	case constants.OrderTypeSubscription:
		prefix = "S"
	case constants.OrderTypePostPurchase:
		prefix = "P"
	}
	return prefix + orderNode.Generate().String()
}

// OrderRepo 订单仓库接口
type OrderRepo interface {
	CreateOrder(ctx context.Context, order *Order) error
	// GetOrderByNo 按订单号查询, forUpdate 为 true 时加行锁(必须在事务内)
	GetOrderByNo(ctx context.Context, orderNo string, forUpdate bool) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	// ListStalePending 查询创建时间早于 before 且仍在 pending 的订单
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*Order, error)
}

// markOrderCompleted 订单置为完成。已到终态时为幂等空操作
func markOrderCompleted(order *Order, paidAt time.Time) bool {
	if order.IsTerminal() {
		return false
	}
	order.Status = constants.OrderStatusCompleted
	order.PaidAt = &paidAt
	return true
}

// markOrderFailed 订单置为失败。已到终态时为幂等空操作
func markOrderFailed(order *Order, reason string) bool {
	if order.IsTerminal() {
		return false
	}
	order.Status = constants.OrderStatusFailed
	order.FailReason = reason
	return true
}
