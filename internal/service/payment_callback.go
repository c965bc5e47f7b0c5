package service

import (
	"context"

	"xinyuan_tech/creator-billing-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// CallbackService 网关回调处理。
// 异步通知是对账的唯一权威来源, 同步跳转只读不写
type CallbackService struct {
	paymentUc *biz.PaymentUsecase
	log       *log.Helper
}

// NewCallbackService 创建回调服务实例
func NewCallbackService(paymentUc *biz.PaymentUsecase, logger log.Logger) *CallbackService {
	return &CallbackService{
		paymentUc: paymentUc,
		log:       log.NewHelper(logger),
	}
}

// Notify 处理网关异步通知。rawBody 是请求体原文, 随支付单存档。
// 返回 nil 表示通知已妥善落库(含重复通知), 网关不再重发
func (s *CallbackService) Notify(ctx context.Context, params map[string]string, rawBody []byte) error {
	if err := s.paymentUc.HandleCallback(ctx, params, rawBody); err != nil {
		s.log.Warnf("Payment callback rejected: %v", err)
		return err
	}
	return nil
}

// ReturnReply 同步跳转应答
type ReturnReply struct {
	OrderNo string `json:"order_no"`
	Type    string `json:"type"`
	Status  string `json:"status"`
}

// Return 处理支付完成后的同步跳转, 只验签和读订单状态
func (s *CallbackService) Return(ctx context.Context, params map[string]string) (*ReturnReply, error) {
	info, err := s.paymentUc.GetReturnInfo(ctx, params)
	if err != nil {
		return nil, err
	}
	return &ReturnReply{
		OrderNo: info.OrderNo,
		Type:    info.Type,
		Status:  info.Status,
	}, nil
}
