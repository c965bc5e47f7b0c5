package data

import (
	"context"
	stderrors "errors"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/data/model"
	"xinyuan_tech/creator-billing-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// 未完结的支付单状态
var openPaymentStatuses = []string{
	constants.PaymentStatusPending,
	constants.PaymentStatusProcessing,
}

// paymentRepo 支付单仓库实现
type paymentRepo struct {
	data *Data
	log  *log.Helper
}

// NewPaymentRepo 创建支付单仓库
func NewPaymentRepo(data *Data, logger log.Logger) biz.PaymentRepo {
	return &paymentRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toPaymentModel(p *biz.PaymentRecord) *model.PaymentRecord {
	return &model.PaymentRecord{
		ID:             p.ID,
		PaymentNo:      p.PaymentNo,
		OrderID:        p.OrderID,
		GatewayTradeNo: p.GatewayTradeNo,
		Gateway:        p.Gateway,
		Method:         p.Method,
		Amount:         p.Amount,
		Fee:            p.Fee,
		ReceivedAmount: p.ReceivedAmount,
		Status:         p.Status,
		PayerIP:        p.PayerIP,
		RawRequest:     p.RawRequest,
		RawResponse:    p.RawResponse,
		RawCallback:    p.RawCallback,
		PaidAt:         p.PaidAt,
		RefundedAt:     p.RefundedAt,
		CancelledAt:    p.CancelledAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPaymentBiz(m *model.PaymentRecord) *biz.PaymentRecord {
	return &biz.PaymentRecord{
		ID:             m.ID,
		PaymentNo:      m.PaymentNo,
		OrderID:        m.OrderID,
		GatewayTradeNo: m.GatewayTradeNo,
		Gateway:        m.Gateway,
		Method:         m.Method,
		Amount:         m.Amount,
		Fee:            m.Fee,
		ReceivedAmount: m.ReceivedAmount,
		Status:         m.Status,
		PayerIP:        m.PayerIP,
		RawRequest:     m.RawRequest,
		RawResponse:    m.RawResponse,
		RawCallback:    m.RawCallback,
		PaidAt:         m.PaidAt,
		RefundedAt:     m.RefundedAt,
		CancelledAt:    m.CancelledAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// CreatePayment 创建支付单。订单存在未完结支付单时拒绝
func (r *paymentRepo) CreatePayment(ctx context.Context, payment *biz.PaymentRecord) error {
	db := r.data.DB(ctx)

	if payment.OrderID > 0 {
		var count int64
		if err := db.Model(&model.PaymentRecord{}).
			Where("order_id = ? AND status IN ?", payment.OrderID, openPaymentStatuses).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, errors.ErrCodePaymentConflict)
		}
	}

	m := toPaymentModel(payment)
	if err := db.Create(m).Error; err != nil {
		r.log.Errorf("Failed to create payment %s: %v", payment.PaymentNo, err)
		return err
	}
	payment.ID = m.ID
	return nil
}

// GetOpenByOrderID 查询订单当前未完结的支付单
func (r *paymentRepo) GetOpenByOrderID(ctx context.Context, orderID uint64) (*biz.PaymentRecord, error) {
	var m model.PaymentRecord
	err := r.data.DB(ctx).
		Where("order_id = ? AND status IN ?", orderID, openPaymentStatuses).
		Order("payment_id DESC").
		First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get open payment for order %d: %v", orderID, err)
		return nil, err
	}
	return toPaymentBiz(&m), nil
}

// GetByOrderAndTradeNo 按订单ID+网关交易号查询支付单
func (r *paymentRepo) GetByOrderAndTradeNo(ctx context.Context, orderID uint64, tradeNo string) (*biz.PaymentRecord, error) {
	var m model.PaymentRecord
	err := r.data.DB(ctx).
		Where("order_id = ? AND gateway_trade_no = ?", orderID, tradeNo).
		First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get payment for order %d trade %s: %v", orderID, tradeNo, err)
		return nil, err
	}
	return toPaymentBiz(&m), nil
}

// UpdatePayment 更新支付单
func (r *paymentRepo) UpdatePayment(ctx context.Context, payment *biz.PaymentRecord) error {
	if err := r.data.DB(ctx).Save(toPaymentModel(payment)).Error; err != nil {
		r.log.Errorf("Failed to update payment %s: %v", payment.PaymentNo, err)
		return err
	}
	return nil
}

// CancelOpenByOrderID 取消订单下所有未完结支付单
func (r *paymentRepo) CancelOpenByOrderID(ctx context.Context, orderID uint64, cancelledAt time.Time) error {
	if err := r.data.DB(ctx).Model(&model.PaymentRecord{}).
		Where("order_id = ? AND status IN ?", orderID, openPaymentStatuses).
		Updates(map[string]interface{}{
			"status":       constants.PaymentStatusCancelled,
			"cancelled_at": cancelledAt,
			"updated_at":   cancelledAt,
		}).Error; err != nil {
		r.log.Errorf("Failed to cancel open payments for order %d: %v", orderID, err)
		return err
	}
	return nil
}
