package constants

import "time"

// 订单类型
const (
	OrderTypeRecharge     = "recharge"      // 余额充值
	OrderTypeSubscription = "subscription"  // 订阅购买(创作者订阅或平台套餐)
	OrderTypePostPurchase = "post_purchase" // 单篇内容购买
)

// 订单状态
const (
	OrderStatusPending   = "pending"   // 待支付
	OrderStatusCompleted = "completed" // 支付完成(终态)
	OrderStatusFailed    = "failed"    // 支付失败(终态)
	OrderStatusRefunded  = "refunded"  // 已退款(仅管理台流程)
)

// 支付单状态
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusCancelled  = "cancelled"
)

// 账本流(余额和积分是两条独立的流水)
const (
	LedgerStreamCredit = "credit" // 余额
	LedgerStreamPoint  = "point"  // 积分
)

// 账本归属主体
const (
	LedgerOwnerUser     = "user"
	LedgerOwnerPlatform = "platform" // 平台抽成归集账户(系统主体, 非魔法用户ID)
)

// PlatformAccountID 平台账本分区的归属ID, 只有一个平台主体
const PlatformAccountID uint64 = 1

// 账本条目类型
const (
	LedgerTypeEarned   = "earned"
	LedgerTypeSpent    = "spent"
	LedgerTypeDeducted = "deducted"
	LedgerTypeRefunded = "refunded"
)

// 账本条目原因
const (
	LedgerReasonRecharge           = "recharge"
	LedgerReasonRechargeBonus      = "recharge_bonus" // 充值赠送, 与实付分开记账
	LedgerReasonSubscribeCreator   = "subscribe_creator"
	LedgerReasonCreatorEarnings    = "creator_earnings"
	LedgerReasonPlatformCommission = "platform_commission"
	LedgerReasonPostPurchase       = "post_purchase"
	LedgerReasonPostEarnings       = "post_earnings"
)

// 关联实体类型(账本条目和订单的多态引用)
const (
	RelatedKindNone             = ""
	RelatedKindOrder            = "order"
	RelatedKindCreatorSub       = "creator_subscription"
	RelatedKindPlanSub          = "plan_subscription"
	RelatedKindPost             = "post"
	RelatedKindRechargePackage  = "recharge_package"
)

// 订阅状态
const (
	SubStatusPending   = "pending"
	SubStatusActive    = "active"
	SubStatusTrial     = "trial"
	SubStatusCancelled = "cancelled"
	SubStatusExpired   = "expired"
	SubStatusSuspended = "suspended"
)

// 分页相关常量
const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 最大分页大小
	MaxPageSize = 100
)

// 分布式锁相关常量
const (
	// ExpireSweepLockKey 过期清扫任务锁
	ExpireSweepLockKey = "billing:lock:expire_sweep"
	// StaleOrderLockKey 超时订单关闭任务锁
	StaleOrderLockKey = "billing:lock:stale_order_sweep"
	// SweepLockExpiration 清扫任务锁过期时间
	SweepLockExpiration = 10 * time.Minute
	// SweepLockRetries 清扫任务锁重试次数(只试一次, 拿不到说明别的实例在跑)
	SweepLockRetries = 1
)

// 订阅相关默认值
const (
	// DefaultSubscriptionDays 创作者订阅默认时长(天)
	DefaultSubscriptionDays = 30
	// DefaultStaleOrderHours 待支付订单默认超时窗口(小时)
	DefaultStaleOrderHours = 24
	// ExpireSweepBatchSize 过期清扫单批数量
	ExpireSweepBatchSize = 200
)

// 网关回调参数
const (
	GatewayStatusSuccess = "1" // orderstatus=1 表示支付成功
)
