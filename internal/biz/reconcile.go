package biz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/errors"
	"xinyuan_tech/creator-billing-service/internal/sign"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/shopspring/decimal"
)

// 网关回调参数字段名
const (
	callbackFieldOrderNo   = "partnerorderid"
	callbackFieldTradeNo   = "orderno"
	callbackFieldStatus    = "orderstatus"
	callbackFieldAmount    = "payamount"
	callbackFieldFailReason = "failreason"
)

// callbackData 解析后的回调内容
type callbackData struct {
	orderNo     string
	tradeNo     string
	success     bool
	amountMinor int64
	failReason  string
	rawPayload  []byte
}

// HandleCallback 处理网关异步回调。rawBody 是请求体原文, 原样存档。
// 幂等: 订单已完成时直接确认成功, 不重复入账;
// 签名或金额校验失败时不落任何状态, 网关会按非2xx应答重试
func (uc *PaymentUsecase) HandleCallback(ctx context.Context, params map[string]string, rawBody []byte) error {
	// 1. 验签。失败即拒绝, 不改任何状态
	if !sign.Verify(params, uc.config.Gateway.Secret) {
		uc.log.Errorw("msg", "callback signature mismatch", "params", params)
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSignatureInvalid)
	}

	// 2. 提取字段
	cb, err := parseCallback(params, rawBody)
	if err != nil {
		uc.log.Errorw("msg", "callback params invalid", "params", params, "err", err)
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCallbackParamInvalid)
	}

	// 3. 查订单
	order, err := uc.orderRepo.GetOrderByNo(ctx, cb.orderNo, false)
	if err != nil {
		return err
	}
	if order == nil {
		uc.log.Errorf("callback for unknown order %s", cb.orderNo)
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderNotFound)
	}

	// 4. 幂等: 回调可能被投递多次
	if order.Status == constants.OrderStatusCompleted {
		uc.log.Infof("order %s already completed, acknowledging duplicate callback", cb.orderNo)
		return nil
	}

	// 5. 金额核对(分)。不一致是硬失败, 留痕等人工对账
	if cb.success {
		expected := order.Amount.Mul(decimal.NewFromInt(100)).IntPart()
		if cb.amountMinor != expected {
			uc.log.Errorw("msg", "callback amount mismatch",
				"order", cb.orderNo, "expected", expected, "got", cb.amountMinor, "payload", string(cb.rawPayload))
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeAmountMismatch)
		}
	}

	// 6. 单事务对账, 任何一步失败整体回滚, 网关重试是安全的
	return uc.tm.Exec(ctx, func(ctx context.Context) error {
		return uc.settleCallback(ctx, cb)
	})
}

// parseCallback 提取并校验回调字段
func parseCallback(params map[string]string, rawBody []byte) (*callbackData, error) {
	orderNo := params[callbackFieldOrderNo]
	if orderNo == "" {
		return nil, fmt.Errorf("missing %s", callbackFieldOrderNo)
	}
	tradeNo := params[callbackFieldTradeNo]
	if tradeNo == "" {
		return nil, fmt.Errorf("missing %s", callbackFieldTradeNo)
	}

	cb := &callbackData{
		orderNo:    orderNo,
		tradeNo:    tradeNo,
		success:    params[callbackFieldStatus] == constants.GatewayStatusSuccess,
		failReason: params[callbackFieldFailReason],
	}
	if cb.success {
		amount, err := strconv.ParseInt(params[callbackFieldAmount], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", callbackFieldAmount, err)
		}
		cb.amountMinor = amount
	}
	if cb.failReason == "" && !cb.success {
		cb.failReason = "gateway returned status " + params[callbackFieldStatus]
	}

	cb.rawPayload = rawBody
	return cb, nil
}

// settleCallback 回调对账事务主体: 锁订单行, 落支付单, 迁移订单状态,
// 成功时按订单类型履约。fake 网关同步路径也走这里
func (uc *PaymentUsecase) settleCallback(ctx context.Context, cb *callbackData) error {
	order, err := uc.orderRepo.GetOrderByNo(ctx, cb.orderNo, true)
	if err != nil {
		return err
	}
	if order == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderNotFound)
	}
	// 拿到行锁后再查一次, 并发重复回调在这里收敛
	if order.Status == constants.OrderStatusCompleted {
		return nil
	}
	// 订单已被失败回调或超时清扫关闭。迟到的成功回调不再履约,
	// 留痕等人工对账; 失败回调按重复投递确认
	if order.IsTerminal() {
		if cb.success {
			uc.log.Errorw("msg", "success callback on closed order",
				"order", order.OrderNo, "status", order.Status, "trade_no", cb.tradeNo, "payload", string(cb.rawPayload))
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderClosed)
		}
		return nil
	}

	now := time.Now().UTC()

	// 支付单以 订单+网关交易号 为键落账, 回调原文原样存档
	payment, err := uc.paymentRepo.GetByOrderAndTradeNo(ctx, order.ID, cb.tradeNo)
	if err != nil {
		return err
	}
	if payment == nil {
		// 网关受理时尚未分配交易号的支付单在这里补上
		payment, err = uc.paymentRepo.GetOpenByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}
	}
	if payment == nil {
		payment = &PaymentRecord{
			PaymentNo: NewPaymentNo(),
			OrderID:   order.ID,
			Gateway:   uc.config.Gateway.Name,
			Method:    order.Method,
			Amount:    order.Amount,
			Status:    constants.PaymentStatusPending,
			CreatedAt: now,
		}
		if err := uc.paymentRepo.CreatePayment(ctx, payment); err != nil {
			return err
		}
	}

	payment.GatewayTradeNo = cb.tradeNo
	payment.RawCallback = cb.rawPayload
	payment.UpdatedAt = now
	if cb.success {
		payment.Status = constants.PaymentStatusCompleted
		payment.ReceivedAmount = decimal.NewFromInt(cb.amountMinor).Div(decimal.NewFromInt(100))
		payment.PaidAt = &now
	} else {
		payment.Status = constants.PaymentStatusFailed
	}
	if err := uc.paymentRepo.UpdatePayment(ctx, payment); err != nil {
		return err
	}

	if !cb.success {
		if markOrderFailed(order, cb.failReason) {
			order.UpdatedAt = now
			return uc.orderRepo.UpdateOrder(ctx, order)
		}
		return nil
	}

	if markOrderCompleted(order, now) {
		order.UpdatedAt = now
		if err := uc.orderRepo.UpdateOrder(ctx, order); err != nil {
			return err
		}
	}
	return uc.fulfillOrder(ctx, order)
}

// fulfillOrder 按订单类型履约。必须在对账事务内调用
func (uc *PaymentUsecase) fulfillOrder(ctx context.Context, order *Order) error {
	switch order.Type {
	case constants.OrderTypeRecharge:
		return uc.fulfillRecharge(ctx, order)

	case constants.OrderTypeSubscription:
		// 订阅行在下单时已按 pending 创建, 此处只做激活
		if order.Related.Kind != constants.RelatedKindPlanSub {
			return fmt.Errorf("subscription order %s has unexpected related kind %q", order.OrderNo, order.Related.Kind)
		}
		return uc.subUc.ActivatePlanSubscription(ctx, order.Related.ID)

	case constants.OrderTypePostPurchase:
		// 解锁时已扣款生成购买记录, 此处只确认存在, 不再动账本
		existing, err := uc.postRepo.GetByUserAndPost(ctx, order.UserID, order.Metadata.PostID)
		if err != nil {
			return err
		}
		if existing == nil {
			// 回调先于解锁记录到达属于数据异常, 补一条记录保证用户拿到内容
			uc.log.Errorf("post purchase record missing for order %s, creating", order.OrderNo)
			return uc.postRepo.CreatePurchase(ctx, &PostPurchase{
				UserID:    order.UserID,
				PostID:    order.Metadata.PostID,
				Price:     order.Amount,
				CreatedAt: time.Now().UTC(),
			})
		}
		return nil

	default:
		return fmt.Errorf("unknown order type %q for order %s", order.Type, order.OrderNo)
	}
}

// fulfillRecharge 充值入账。赠送金额单独记一条, 报表可区分实付与赠送
func (uc *PaymentUsecase) fulfillRecharge(ctx context.Context, order *Order) error {
	related := RelatedRef{Kind: constants.RelatedKindOrder, ID: order.ID}

	if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
		Stream:    constants.LedgerStreamCredit,
		OwnerType: constants.LedgerOwnerUser,
		OwnerID:   order.UserID,
		Amount:    order.Amount,
		Type:      constants.LedgerTypeEarned,
		Reason:    constants.LedgerReasonRecharge,
		Metadata:  map[string]string{"order_no": order.OrderNo},
		Related:   related,
	}); err != nil {
		return err
	}

	if order.Metadata.Bonus.IsPositive() {
		if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
			Stream:    constants.LedgerStreamCredit,
			OwnerType: constants.LedgerOwnerUser,
			OwnerID:   order.UserID,
			Amount:    order.Metadata.Bonus,
			Type:      constants.LedgerTypeEarned,
			Reason:    constants.LedgerReasonRechargeBonus,
			Metadata:  map[string]string{"order_no": order.OrderNo, "package_id": order.Metadata.PackageID},
			Related:   related,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ReturnInfo 同步跳转页需要的订单信息
type ReturnInfo struct {
	OrderNo string
	Type    string
	Status  string
}

// GetReturnInfo 同步跳转处理: 只验签和读状态, 绝不改状态。
// 回调和跳转的到达顺序没有保证, 状态以回调落库结果为准
func (uc *PaymentUsecase) GetReturnInfo(ctx context.Context, params map[string]string) (*ReturnInfo, error) {
	if !sign.Verify(params, uc.config.Gateway.Secret) {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeSignatureInvalid)
	}
	orderNo := params[callbackFieldOrderNo]
	if orderNo == "" {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCallbackParamInvalid)
	}
	order, err := uc.orderRepo.GetOrderByNo(ctx, orderNo, false)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderNotFound)
	}
	return &ReturnInfo{OrderNo: order.OrderNo, Type: order.Type, Status: order.Status}, nil
}
