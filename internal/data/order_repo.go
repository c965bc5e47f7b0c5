package data

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"xinyuan_tech/creator-billing-service/internal/biz"
	"xinyuan_tech/creator-billing-service/internal/constants"
	"xinyuan_tech/creator-billing-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderRepo 订单仓库实现
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单仓库
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toOrderModel(order *biz.Order) (*model.Order, error) {
	metadata, err := json.Marshal(order.Metadata)
	if err != nil {
		return nil, err
	}
	return &model.Order{
		ID:          order.ID,
		OrderNo:     order.OrderNo,
		UserID:      order.UserID,
		Type:        order.Type,
		Amount:      order.Amount,
		Status:      order.Status,
		Method:      order.Method,
		Metadata:    metadata,
		RelatedKind: order.Related.Kind,
		RelatedID:   order.Related.ID,
		FailReason:  order.FailReason,
		PaidAt:      order.PaidAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}, nil
}

func toOrderBiz(m *model.Order) (*biz.Order, error) {
	var metadata biz.OrderMetadata
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, err
		}
	}
	return &biz.Order{
		ID:         m.ID,
		OrderNo:    m.OrderNo,
		UserID:     m.UserID,
		Type:       m.Type,
		Amount:     m.Amount,
		Status:     m.Status,
		Method:     m.Method,
		Metadata:   metadata,
		Related:    biz.RelatedRef{Kind: m.RelatedKind, ID: m.RelatedID},
		FailReason: m.FailReason,
		PaidAt:     m.PaidAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

// CreateOrder 创建订单
func (r *orderRepo) CreateOrder(ctx context.Context, order *biz.Order) error {
	m, err := toOrderModel(order)
	if err != nil {
		return err
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create order %s: %v", order.OrderNo, err)
		return err
	}
	order.ID = m.ID
	return nil
}

// GetOrderByNo 按订单号查询订单
func (r *orderRepo) GetOrderByNo(ctx context.Context, orderNo string, forUpdate bool) (*biz.Order, error) {
	db := r.data.DB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m model.Order
	err := db.Where("order_no = ?", orderNo).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get order %s: %v", orderNo, err)
		return nil, err
	}
	return toOrderBiz(&m)
}

// UpdateOrder 更新订单
func (r *orderRepo) UpdateOrder(ctx context.Context, order *biz.Order) error {
	m, err := toOrderModel(order)
	if err != nil {
		return err
	}
	if err := r.data.DB(ctx).Save(m).Error; err != nil {
		r.log.Errorf("Failed to update order %s: %v", order.OrderNo, err)
		return err
	}
	return nil
}

// ListStalePending 查询超过支付窗口仍 pending 的订单
func (r *orderRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*biz.Order, error) {
	var models []model.Order
	if err := r.data.DB(ctx).
		Where("status = ? AND created_at < ?", constants.OrderStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		r.log.Errorf("Failed to list stale pending orders: %v", err)
		return nil, err
	}

	orders := make([]*biz.Order, 0, len(models))
	for i := range models {
		order, err := toOrderBiz(&models[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
