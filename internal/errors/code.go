package errors

import (
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
)

func init() {
	// 初始化全局错误管理器（使用项目特定的配置）
	pkgErrors.InitGlobalErrorManager("i18n", i18nPkg.Language)
}

// 计费服务错误码定义
// 错误码格式：SSMMEE (6位数字)，其中 SS=14 表示 creator-billing-service
// 模块划分：
//   01: 订单模块
//   02: 支付模块
//   03: 账本模块
//   04: 订阅生命周期
//   05: 套餐模块

// 订单模块 (140100-140199)
const (
	// ErrCodeOrderNotFound 订单不存在错误
	ErrCodeOrderNotFound = 140101
	// ErrCodeOrderCreateFailed 订单创建失败错误
	ErrCodeOrderCreateFailed = 140102
	// ErrCodeOrderAmountInvalid 订单金额无效错误
	ErrCodeOrderAmountInvalid = 140103
	// ErrCodeOrderTypeInvalid 订单类型无效错误
	ErrCodeOrderTypeInvalid = 140104
	// ErrCodeOrderClosed 订单已关闭后收到成功回调错误
	ErrCodeOrderClosed = 140105
)

// 支付模块 (140200-140299)
const (
	// ErrCodePaymentFailed 支付网关请求失败错误
	ErrCodePaymentFailed = 140201
	// ErrCodeSignatureInvalid 回调签名校验失败错误
	ErrCodeSignatureInvalid = 140202
	// ErrCodeAmountMismatch 回调金额与订单金额不一致错误
	ErrCodeAmountMismatch = 140203
	// ErrCodeCallbackParamInvalid 回调参数缺失或无效错误
	ErrCodeCallbackParamInvalid = 140204
	// ErrCodePaymentConflict 订单已存在未完结的支付单错误
	ErrCodePaymentConflict = 140205
)

// 账本模块 (140300-140399)
const (
	// ErrCodeInsufficientBalance 余额不足错误
	ErrCodeInsufficientBalance = 140301
	// ErrCodeLedgerAppendFailed 账本写入失败错误
	ErrCodeLedgerAppendFailed = 140302
)

// 订阅生命周期模块 (140400-140499)
const (
	// ErrCodeSubscriptionNotFound 订阅不存在错误
	ErrCodeSubscriptionNotFound = 140401
	// ErrCodeAlreadySubscribed 已存在对该创作者的活跃订阅错误
	ErrCodeAlreadySubscribed = 140402
	// ErrCodeCannotCancelStatus 当前状态无法取消订阅错误
	ErrCodeCannotCancelStatus = 140403
	// ErrCodeCannotRenewStatus 当前状态无法续费错误
	ErrCodeCannotRenewStatus = 140404
	// ErrCodeCannotSuspendStatus 当前状态无法暂停错误
	ErrCodeCannotSuspendStatus = 140405
	// ErrCodeCannotResumeStatus 当前状态无法恢复错误
	ErrCodeCannotResumeStatus = 140406
	// ErrCodeAlreadyPurchased 已购买过该内容错误
	ErrCodeAlreadyPurchased = 140407
)

// 套餐模块 (140500-140599)
const (
	// ErrCodePlanNotFound 套餐不存在错误
	ErrCodePlanNotFound = 140501
	// ErrCodePackageNotFound 充值套餐不存在错误
	ErrCodePackageNotFound = 140502
	// ErrCodeCreatorNotFound 创作者不存在错误
	ErrCodeCreatorNotFound = 140503
	// ErrCodePlanInvalid 套餐参数无效错误
	ErrCodePlanInvalid = 140504
)
