package biz

import (
	"context"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewLedgerUsecase,
	NewSubscriptionUsecase,
	NewPaymentUsecase,
)

// Transaction 事务执行接口, 由 data 层实现
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

// RelatedRef 多态关联引用(订单/账本条目指向的业务实体)
// Kind 取 constants.RelatedKind* 常量, 消费侧按 Kind 穷举分支
type RelatedRef struct {
	Kind string
	ID   uint64
}

// IsZero 是否为空引用
func (r RelatedRef) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}
