package biz

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/creator-billing-service/internal/conf"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/shopspring/decimal"
)

// PostPurchase 单篇内容购买记录。内容解锁时从余额扣款生成
type PostPurchase struct {
	ID        uint64
	UserID    uint64
	PostID    uint64
	CreatorID uint64
	Price     decimal.Decimal
	CreatedAt time.Time
}

// PostPurchaseRepo 内容购买记录仓库接口
type PostPurchaseRepo interface {
	CreatePurchase(ctx context.Context, purchase *PostPurchase) error
	// GetByUserAndPost 不存在时返回 nil
	GetByUserAndPost(ctx context.Context, userID, postID uint64) (*PostPurchase, error)
}

// PaymentUsecase 订单/支付/回调对账业务逻辑
type PaymentUsecase struct {
	orderRepo   OrderRepo
	paymentRepo PaymentRepo
	ledgerRepo  LedgerRepo
	postRepo    PostPurchaseRepo
	creatorRepo CreatorRepo
	subUc       *SubscriptionUsecase
	gateway     GatewayClient
	config      *conf.Bootstrap
	tm          Transaction
	rs          *redsync.Redsync
	log         *log.Helper
}

// NewPaymentUsecase 创建支付业务用例
func NewPaymentUsecase(
	orderRepo OrderRepo,
	paymentRepo PaymentRepo,
	ledgerRepo LedgerRepo,
	postRepo PostPurchaseRepo,
	creatorRepo CreatorRepo,
	subUc *SubscriptionUsecase,
	gateway GatewayClient,
	config *conf.Bootstrap,
	tm Transaction,
	rs *redsync.Redsync,
	logger log.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		ledgerRepo:  ledgerRepo,
		postRepo:    postRepo,
		creatorRepo: creatorRepo,
		subUc:       subUc,
		gateway:     gateway,
		config:      config,
		tm:          tm,
		rs:          rs,
		log:         log.NewHelper(logger),
	}
}

// PurchaseIntentRequest 协作方发起的购买请求
type PurchaseIntentRequest struct {
	UserID    uint64
	Type      string // recharge, subscription, post_purchase
	Method    string
	PayerIP   string
	PackageID string          // recharge: 充值套餐
	PlanID    string          // subscription: 平台套餐
	PostID    uint64          // post_purchase: 内容ID
	Amount    decimal.Decimal // post_purchase: 内容价格(目录方定价)
}

// PurchaseIntentResult 购买请求结果
type PurchaseIntentResult struct {
	OrderNo              string
	RedirectURL          string
	CompletedImmediately bool
}

// CreatePurchaseIntent 创建订单和支付单, 并向网关下单取支付跳转地址。
// fake 网关不出站, 直接走与回调完全相同的对账路径同步完成
func (uc *PaymentUsecase) CreatePurchaseIntent(ctx context.Context, req *PurchaseIntentRequest) (*PurchaseIntentResult, error) {
	uc.log.Infof("CreatePurchaseIntent: user=%d, type=%s, method=%s", req.UserID, req.Type, req.Method)

	amount, metadata, related, err := uc.resolveIntent(ctx, req)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderAmountInvalid)
	}

	now := time.Now().UTC()
	order := &Order{
		OrderNo:   NewOrderNo(req.Type),
		UserID:    req.UserID,
		Type:      req.Type,
		Amount:    amount,
		Status:    constants.OrderStatusPending,
		Method:    req.Method,
		Metadata:  metadata,
		Related:   related,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payment := &PaymentRecord{
		PaymentNo: NewPaymentNo(),
		Gateway:   uc.config.Gateway.Name,
		Method:    req.Method,
		Amount:    amount,
		Status:    constants.PaymentStatusPending,
		PayerIP:   req.PayerIP,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 订单、支付单和 pending 订阅行在一个事务里落库
	err = uc.tm.Exec(ctx, func(ctx context.Context) error {
		if req.Type == constants.OrderTypeSubscription {
			plan, err := uc.subUc.GetPlan(ctx, req.PlanID)
			if err != nil {
				return err
			}
			sub, err := uc.subUc.CreatePendingPlanSubscription(ctx, req.UserID, plan)
			if err != nil {
				return err
			}
			order.Related = RelatedRef{Kind: constants.RelatedKindPlanSub, ID: sub.ID}
		}
		if err := uc.orderRepo.CreateOrder(ctx, order); err != nil {
			return err
		}
		payment.OrderID = order.ID
		return uc.paymentRepo.CreatePayment(ctx, payment)
	})
	if err != nil {
		uc.log.Errorf("Failed to create order: %v", err)
		return nil, err
	}
	uc.log.Infof("Created order %s, payment %s", order.OrderNo, payment.PaymentNo)

	amountMinor := amount.Mul(decimal.NewFromInt(100)).IntPart()

	// fake 网关: 同步走对账路径, 激活/入账逻辑与真实回调完全一致
	if uc.config.Gateway.Name == "fake" {
		cb := &callbackData{
			orderNo:     order.OrderNo,
			tradeNo:     "FAKE" + order.OrderNo,
			success:     true,
			amountMinor: amountMinor,
			rawPayload:  []byte(fmt.Sprintf(`{"fake":true,"partnerorderid":%q}`, order.OrderNo)),
		}
		if err := uc.tm.Exec(ctx, func(ctx context.Context) error {
			return uc.settleCallback(ctx, cb)
		}); err != nil {
			return nil, err
		}
		return &PurchaseIntentResult{OrderNo: order.OrderNo, CompletedImmediately: true}, nil
	}

	// 真实网关: 出站下单取跳转地址, 失败时关闭订单, 不留僵尸 pending
	resp, err := uc.gateway.CreatePayment(ctx, &GatewayPaymentRequest{
		OrderNo:     order.OrderNo,
		AmountMinor: amountMinor,
		PayerIP:     req.PayerIP,
		Method:      req.Method,
	})
	if err != nil {
		uc.log.Errorf("Gateway request failed for order %s: %v", order.OrderNo, err)
		if ferr := uc.tm.Exec(ctx, func(ctx context.Context) error {
			return uc.closeOrder(ctx, order.OrderNo, "gateway request failed")
		}); ferr != nil {
			uc.log.Errorf("Failed to close order %s: %v", order.OrderNo, ferr)
		}
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePaymentFailed)
	}

	payment.GatewayTradeNo = resp.TradeNo
	payment.Status = constants.PaymentStatusProcessing
	payment.RawRequest = resp.RawRequest
	payment.RawResponse = resp.RawResponse
	payment.UpdatedAt = time.Now().UTC()
	if err := uc.paymentRepo.UpdatePayment(ctx, payment); err != nil {
		return nil, err
	}

	return &PurchaseIntentResult{OrderNo: order.OrderNo, RedirectURL: resp.RedirectURL}, nil
}

// resolveIntent 按订单类型定价并准备元数据
func (uc *PaymentUsecase) resolveIntent(ctx context.Context, req *PurchaseIntentRequest) (decimal.Decimal, OrderMetadata, RelatedRef, error) {
	var metadata OrderMetadata
	var related RelatedRef

	switch req.Type {
	case constants.OrderTypeRecharge:
		pkg := uc.config.Billing.FindRechargePackage(req.PackageID)
		if pkg == nil {
			return decimal.Zero, metadata, related, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePackageNotFound)
		}
		price, err := decimal.NewFromString(pkg.Price)
		if err != nil {
			return decimal.Zero, metadata, related, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderAmountInvalid)
		}
		bonus := decimal.Zero
		if pkg.Bonus != "" {
			if bonus, err = decimal.NewFromString(pkg.Bonus); err != nil {
				return decimal.Zero, metadata, related, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderAmountInvalid)
			}
		}
		metadata.PackageID = pkg.PackageID
		metadata.Bonus = bonus
		return price, metadata, related, nil

	case constants.OrderTypeSubscription:
		plan, err := uc.subUc.GetPlan(ctx, req.PlanID)
		if err != nil {
			return decimal.Zero, metadata, related, err
		}
		metadata.PlanID = plan.PlanID
		// related 填订阅ID, 在下单事务内创建 pending 订阅后再补上
		return plan.Price, metadata, related, nil

	case constants.OrderTypePostPurchase:
		if req.PostID == 0 {
			return decimal.Zero, metadata, related, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCallbackParamInvalid)
		}
		metadata.PostID = req.PostID
		related = RelatedRef{Kind: constants.RelatedKindPost, ID: req.PostID}
		return req.Amount, metadata, related, nil

	default:
		return decimal.Zero, metadata, related, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderTypeInvalid)
	}
}

// GetOrder 按订单号查询订单, 不存在时返回业务错误
func (uc *PaymentUsecase) GetOrder(ctx context.Context, orderNo string) (*Order, error) {
	order, err := uc.orderRepo.GetOrderByNo(ctx, orderNo, false)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderNotFound)
	}
	return order, nil
}

// closeOrder 关闭订单并取消未完结支付单。必须在事务内调用
func (uc *PaymentUsecase) closeOrder(ctx context.Context, orderNo, reason string) error {
	order, err := uc.orderRepo.GetOrderByNo(ctx, orderNo, true)
	if err != nil {
		return err
	}
	if order == nil || order.IsTerminal() {
		return nil
	}
	now := time.Now().UTC()
	if markOrderFailed(order, reason) {
		order.UpdatedAt = now
		if err := uc.orderRepo.UpdateOrder(ctx, order); err != nil {
			return err
		}
	}
	return uc.paymentRepo.CancelOpenByOrderID(ctx, order.ID, now)
}

// PurchasePost 内容解锁: 从余额扣款, 按创作者抽成比例分账, 生成购买记录。
// 全部动作一个事务, 不走网关
func (uc *PaymentUsecase) PurchasePost(ctx context.Context, userID, postID, creatorID uint64, price decimal.Decimal) (*PostPurchase, error) {
	uc.log.Infof("PurchasePost: user=%d, post=%d, creator=%d, price=%s", userID, postID, creatorID, price)

	if !price.IsPositive() {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeOrderAmountInvalid)
	}

	var result *PostPurchase
	err := uc.tm.Exec(ctx, func(ctx context.Context) error {
		creator, err := uc.creatorRepo.GetCreator(ctx, creatorID, true)
		if err != nil {
			return err
		}
		if creator == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeCreatorNotFound)
		}

		existing, err := uc.postRepo.GetByUserAndPost(ctx, userID, postID)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodeAlreadyPurchased)
		}

		purchase := &PostPurchase{
			UserID:    userID,
			PostID:    postID,
			CreatorID: creatorID,
			Price:     price,
			CreatedAt: time.Now().UTC(),
		}
		if err := uc.postRepo.CreatePurchase(ctx, purchase); err != nil {
			return err
		}

		creatorAmount, platformAmount := SplitRevenue(price, uc.subUc.commissionRate(creator))
		related := RelatedRef{Kind: constants.RelatedKindPost, ID: postID}

		if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
			Stream:    constants.LedgerStreamCredit,
			OwnerType: constants.LedgerOwnerUser,
			OwnerID:   userID,
			Amount:    price.Neg(),
			Type:      constants.LedgerTypeSpent,
			Reason:    constants.LedgerReasonPostPurchase,
			Related:   related,
		}); err != nil {
			return err
		}
		if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
			Stream:    constants.LedgerStreamCredit,
			OwnerType: constants.LedgerOwnerUser,
			OwnerID:   creatorID,
			Amount:    creatorAmount,
			Type:      constants.LedgerTypeEarned,
			Reason:    constants.LedgerReasonPostEarnings,
			Related:   related,
		}); err != nil {
			return err
		}
		if err := uc.ledgerRepo.ApplyEntry(ctx, &LedgerEntry{
			Stream:    constants.LedgerStreamCredit,
			OwnerType: constants.LedgerOwnerPlatform,
			OwnerID:   constants.PlatformAccountID,
			Amount:    platformAmount,
			Type:      constants.LedgerTypeEarned,
			Reason:    constants.LedgerReasonPlatformCommission,
			Related:   related,
		}); err != nil {
			return err
		}

		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FailStaleOrders 超时关单入口。分布式锁内逐单关闭
func (uc *PaymentUsecase) FailStaleOrders(ctx context.Context) (closed, skipped int, err error) {
	mutex := uc.rs.NewMutex(
		constants.StaleOrderLockKey,
		redsync.WithExpiry(constants.SweepLockExpiration),
		redsync.WithTries(constants.SweepLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("Stale order sweep skipped: lock busy")
		return 0, 0, nil
	}
	defer func() {
		if _, unlockErr := mutex.UnlockContext(ctx); unlockErr != nil {
			uc.log.Warnf("Failed to unlock stale order sweep: %v", unlockErr)
		}
	}()

	return uc.failStaleOrders(ctx)
}

// failStaleOrders 关闭超过支付窗口仍 pending 的订单, 单行失败不阻塞其他行
func (uc *PaymentUsecase) failStaleOrders(ctx context.Context) (closed, skipped int, err error) {
	hours := uc.config.Billing.StaleOrderHours
	if hours <= 0 {
		hours = constants.DefaultStaleOrderHours
	}
	before := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	orders, err := uc.orderRepo.ListStalePending(ctx, before, constants.ExpireSweepBatchSize)
	if err != nil {
		return 0, 0, err
	}
	for _, order := range orders {
		err := uc.tm.Exec(ctx, func(ctx context.Context) error {
			return uc.closeOrder(ctx, order.OrderNo, "payment window expired")
		})
		if err != nil {
			uc.log.Errorf("Failed to close stale order %s: %v", order.OrderNo, err)
			skipped++
			continue
		}
		closed++
	}
	uc.log.Infof("Stale order sweep finished: closed=%d, skipped=%d", closed, skipped)
	return closed, skipped, nil
}
