package service

import (
	"context"
	"time"

	"xinyuan_tech/creator-billing-service/internal/auth"
	"xinyuan_tech/creator-billing-service/internal/biz"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingService 计费服务。对外暴露下单/订阅/账本的 HTTP 接口
type BillingService struct {
	paymentUc *biz.PaymentUsecase
	subUc     *biz.SubscriptionUsecase
	ledgerUc  *biz.LedgerUsecase
}

// NewBillingService 创建计费服务实例
func NewBillingService(paymentUc *biz.PaymentUsecase, subUc *biz.SubscriptionUsecase, ledgerUc *biz.LedgerUsecase) *BillingService {
	return &BillingService{
		paymentUc: paymentUc,
		subUc:     subUc,
		ledgerUc:  ledgerUc,
	}
}

// CreatePurchaseIntentRequest 下单请求
type CreatePurchaseIntentRequest struct {
	Type      string `json:"type"` // recharge, subscription, post_purchase
	Method    string `json:"method"`
	PayerIP   string `json:"payer_ip"`
	PackageID string `json:"package_id"`
	PlanID    string `json:"plan_id"`
	PostID    uint64 `json:"post_id,string"`
	Amount    string `json:"amount"` // post_purchase 目录方定价
}

// CreatePurchaseIntentReply 下单应答
type CreatePurchaseIntentReply struct {
	OrderNo              string `json:"order_no"`
	RedirectURL          string `json:"redirect_url,omitempty"`
	CompletedImmediately bool   `json:"completed_immediately"`
}

// CreatePurchaseIntent 创建订单并向网关下单
func (s *BillingService) CreatePurchaseIntent(ctx context.Context, req *CreatePurchaseIntentRequest) (*CreatePurchaseIntentReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if req.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
		}
	}

	result, err := s.paymentUc.CreatePurchaseIntent(ctx, &biz.PurchaseIntentRequest{
		UserID:    uid,
		Type:      req.Type,
		Method:    req.Method,
		PayerIP:   req.PayerIP,
		PackageID: req.PackageID,
		PlanID:    req.PlanID,
		PostID:    req.PostID,
		Amount:    amount,
	})
	if err != nil {
		return nil, err
	}
	return &CreatePurchaseIntentReply{
		OrderNo:              result.OrderNo,
		RedirectURL:          result.RedirectURL,
		CompletedImmediately: result.CompletedImmediately,
	}, nil
}

// GetOrderReply 订单详情应答
type GetOrderReply struct {
	OrderNo    string `json:"order_no"`
	Type       string `json:"type"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	PaidAt     string `json:"paid_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// GetOrder 查询自己的订单状态
func (s *BillingService) GetOrder(ctx context.Context, orderNo string) (*GetOrderReply, error) {
	order, err := s.paymentUc.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckOwnership(ctx, order.UserID); err != nil {
		return nil, err
	}
	reply := &GetOrderReply{
		OrderNo:    order.OrderNo,
		Type:       order.Type,
		Amount:     order.Amount.StringFixed(2),
		Status:     order.Status,
		FailReason: order.FailReason,
		CreatedAt:  order.CreatedAt.Format(time.RFC3339),
	}
	if order.PaidAt != nil {
		reply.PaidAt = order.PaidAt.Format(time.RFC3339)
	}
	return reply, nil
}

// SubscribeCreatorRequest 创作者订阅请求
type SubscribeCreatorRequest struct {
	CreatorID uint64 `json:"creator_id,string"`
}

// SubscriptionReply 订阅信息应答
type SubscriptionReply struct {
	SubscriptionID uint64 `json:"subscription_id,string"`
	Status         string `json:"status"`
	Price          string `json:"price"`
	AutoRenew      bool   `json:"auto_renew"`
	RenewCount     int    `json:"renew_count"`
	StartedAt      string `json:"started_at,omitempty"`
	ExpiresAt      string `json:"expires_at,omitempty"`
}

func toSubscriptionReply(sub *biz.CreatorSubscription) *SubscriptionReply {
	reply := &SubscriptionReply{
		SubscriptionID: sub.ID,
		Status:         sub.Status,
		Price:          sub.Price.StringFixed(2),
		AutoRenew:      sub.AutoRenew,
		RenewCount:     sub.RenewCount,
	}
	if sub.StartedAt != nil {
		reply.StartedAt = sub.StartedAt.Format(time.RFC3339)
	}
	if sub.ExpiresAt != nil {
		reply.ExpiresAt = sub.ExpiresAt.Format(time.RFC3339)
	}
	return reply
}

// SubscribeCreator 用余额订阅创作者
func (s *BillingService) SubscribeCreator(ctx context.Context, req *SubscribeCreatorRequest) (*SubscriptionReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := s.subUc.SubscribeToCreator(ctx, uid, req.CreatorID)
	if err != nil {
		return nil, err
	}
	return toSubscriptionReply(sub), nil
}

// RenewCreatorSubscription 续订创作者订阅
func (s *BillingService) RenewCreatorSubscription(ctx context.Context, req *SubscribeCreatorRequest) (*SubscriptionReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := s.subUc.RenewCreatorSubscription(ctx, uid, req.CreatorID)
	if err != nil {
		return nil, err
	}
	return toSubscriptionReply(sub), nil
}

// CancelSubscriptionRequest 取消订阅请求
type CancelSubscriptionRequest struct {
	CreatorID uint64 `json:"creator_id,string"`
	Reason    string `json:"reason"`
}

// CancelSubscription 取消创作者订阅, 不回溯已确认的收入
func (s *BillingService) CancelSubscription(ctx context.Context, req *CancelSubscriptionRequest) error {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return err
	}
	return s.subUc.CancelSubscription(ctx, uid, req.CreatorID, req.Reason)
}

// SetAutoRenewRequest 自动续订开关请求
type SetAutoRenewRequest struct {
	CreatorID uint64 `json:"creator_id,string"`
	AutoRenew bool   `json:"auto_renew"`
}

// SetAutoRenew 设置创作者订阅的自动续订开关
func (s *BillingService) SetAutoRenew(ctx context.Context, req *SetAutoRenewRequest) error {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return err
	}
	return s.subUc.SetAutoRenew(ctx, uid, req.CreatorID, req.AutoRenew)
}

// SubscriptionStatusReply 订阅状态应答
type SubscriptionStatusReply struct {
	Status string `json:"status"` // active, expired, none
}

// GetSubscriptionStatus 查询对某创作者的订阅状态
func (s *BillingService) GetSubscriptionStatus(ctx context.Context, creatorID uint64) (*SubscriptionStatusReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	status, err := s.subUc.GetSubscriptionStatus(ctx, uid, creatorID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatusReply{Status: status}, nil
}

// CancelPlanSubscriptionRequest 取消平台套餐订阅请求
type CancelPlanSubscriptionRequest struct {
	Reason string `json:"reason"`
}

// CancelPlanSubscription 取消平台套餐订阅
func (s *BillingService) CancelPlanSubscription(ctx context.Context, req *CancelPlanSubscriptionRequest) error {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return err
	}
	return s.subUc.CancelPlanSubscription(ctx, uid, req.Reason)
}

// PlanReply 平台套餐
type PlanReply struct {
	PlanID       string `json:"plan_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	DurationDays int    `json:"duration_days"`
}

// ListPlansReply 平台套餐列表应答
type ListPlansReply struct {
	Plans []*PlanReply `json:"plans"`
}

// ListPlans 获取所有平台套餐
func (s *BillingService) ListPlans(ctx context.Context) (*ListPlansReply, error) {
	plans, err := s.subUc.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	reply := &ListPlansReply{Plans: make([]*PlanReply, 0, len(plans))}
	for _, p := range plans {
		reply.Plans = append(reply.Plans, &PlanReply{
			PlanID:       p.PlanID,
			Name:         p.Name,
			Description:  p.Description,
			Price:        p.Price.StringFixed(2),
			DurationDays: p.DurationDays,
		})
	}
	return reply, nil
}

// CreatePlanRequest 管理台创建套餐请求
type CreatePlanRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	DurationDays int    `json:"duration_days"` // 0 表示不过期
}

// CreatePlan 管理台创建平台套餐, 套餐ID由服务端生成
func (s *BillingService) CreatePlan(ctx context.Context, req *CreatePlanRequest) (*PlanReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	plan := &biz.Plan{
		PlanID:       uuid.New().String(),
		Name:         req.Name,
		Description:  req.Description,
		Price:        price,
		DurationDays: req.DurationDays,
	}
	if err := s.subUc.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return &PlanReply{
		PlanID:       plan.PlanID,
		Name:         plan.Name,
		Description:  plan.Description,
		Price:        plan.Price.StringFixed(2),
		DurationDays: plan.DurationDays,
	}, nil
}

// PurchasePostRequest 内容购买请求
type PurchasePostRequest struct {
	PostID    uint64 `json:"post_id,string"`
	CreatorID uint64 `json:"creator_id,string"`
	Price     string `json:"price"` // 目录方定价
}

// PurchasePostReply 内容购买应答
type PurchasePostReply struct {
	PurchaseID uint64 `json:"purchase_id,string"`
	PostID     uint64 `json:"post_id,string"`
	Price      string `json:"price"`
}

// PurchasePost 用余额购买单篇内容
func (s *BillingService) PurchasePost(ctx context.Context, req *PurchasePostRequest) (*PurchasePostReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, pkgErrors.ErrCodeInvalidArgument)
	}
	purchase, err := s.paymentUc.PurchasePost(ctx, uid, req.PostID, req.CreatorID, price)
	if err != nil {
		return nil, err
	}
	return &PurchasePostReply{
		PurchaseID: purchase.ID,
		PostID:     purchase.PostID,
		Price:      purchase.Price.StringFixed(2),
	}, nil
}

// BalanceReply 余额应答
type BalanceReply struct {
	Credits string `json:"credits"`
	Points  string `json:"points"`
}

// GetBalance 查询自己的余额与积分
func (s *BillingService) GetBalance(ctx context.Context) (*BalanceReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledgerUc.GetBalance(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &BalanceReply{
		Credits: balance.Credits.StringFixed(2),
		Points:  balance.Points.StringFixed(2),
	}, nil
}

// LedgerEntryReply 账本条目
type LedgerEntryReply struct {
	EntryID     uint64            `json:"entry_id,string"`
	Stream      string            `json:"stream"`
	Amount      string            `json:"amount"`
	Type        string            `json:"type"`
	Reason      string            `json:"reason"`
	RelatedKind string            `json:"related_kind,omitempty"`
	RelatedID   uint64            `json:"related_id,string,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
}

// ListLedgerEntriesReply 账本流水应答
type ListLedgerEntriesReply struct {
	Entries []*LedgerEntryReply `json:"entries"`
	Total   int                 `json:"total"`
}

// ListLedgerEntries 分页查询自己的账本流水
func (s *BillingService) ListLedgerEntries(ctx context.Context, stream string, page, pageSize int) (*ListLedgerEntriesReply, error) {
	uid, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	entries, total, err := s.ledgerUc.ListEntries(ctx, uid, stream, page, pageSize)
	if err != nil {
		return nil, err
	}
	reply := &ListLedgerEntriesReply{
		Entries: make([]*LedgerEntryReply, 0, len(entries)),
		Total:   total,
	}
	for _, e := range entries {
		reply.Entries = append(reply.Entries, &LedgerEntryReply{
			EntryID:     e.ID,
			Stream:      e.Stream,
			Amount:      e.Amount.StringFixed(2),
			Type:        e.Type,
			Reason:      e.Reason,
			RelatedKind: e.Related.Kind,
			RelatedID:   e.Related.ID,
			Metadata:    e.Metadata,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}
	return reply, nil
}

// SuspendSubscriptionRequest 管理端冻结/恢复订阅请求
type SuspendSubscriptionRequest struct {
	SubscriptionID uint64 `json:"subscription_id,string"`
}

// SuspendSubscription 管理端冻结订阅
func (s *BillingService) SuspendSubscription(ctx context.Context, req *SuspendSubscriptionRequest) error {
	if err := auth.RequireAdmin(ctx); err != nil {
		return err
	}
	return s.subUc.SuspendSubscription(ctx, req.SubscriptionID)
}

// ResumeSubscription 管理端恢复被冻结的订阅
func (s *BillingService) ResumeSubscription(ctx context.Context, req *SuspendSubscriptionRequest) error {
	if err := auth.RequireAdmin(ctx); err != nil {
		return err
	}
	return s.subUc.ResumeSubscription(ctx, req.SubscriptionID)
}

// AuditReply 管理端对账应答
type AuditReply struct {
	Results []*AuditStreamReply `json:"results"`
}

// AuditStreamReply 单条流的对账结果
type AuditStreamReply struct {
	Stream     string `json:"stream"`
	EntrySum   string `json:"entry_sum"`
	Balance    string `json:"balance"`
	Consistent bool   `json:"consistent"`
}

// AuditBalance 管理端核对某主体的流水之和与余额字段
func (s *BillingService) AuditBalance(ctx context.Context, ownerType string, ownerID uint64) (*AuditReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	results, err := s.ledgerUc.Audit(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	reply := &AuditReply{Results: make([]*AuditStreamReply, 0, len(results))}
	for _, r := range results {
		reply.Results = append(reply.Results, &AuditStreamReply{
			Stream:     r.Stream,
			EntrySum:   r.EntrySum.StringFixed(2),
			Balance:    r.Balance.StringFixed(2),
			Consistent: r.Consistent,
		})
	}
	return reply, nil
}

// ReconcileCreatorRequest 管理端创作者收入对账请求
type ReconcileCreatorRequest struct {
	CreatorID uint64 `json:"creator_id,string"`
	Repair    bool   `json:"repair"`
}

// ReconcileCreatorReply 创作者收入对账应答
type ReconcileCreatorReply struct {
	CreatorID          uint64 `json:"creator_id,string"`
	SubEarnings        string `json:"sub_earnings"`
	SubPlatformShare   string `json:"sub_platform_share"`
	TotalEarnings      string `json:"total_earnings"`
	TotalPlatformShare string `json:"total_platform_share"`
	Consistent         bool   `json:"consistent"`
	Repaired           bool   `json:"repaired"`
}

// ReconcileCreatorRevenue 管理端核对创作者收入累计值
func (s *BillingService) ReconcileCreatorRevenue(ctx context.Context, req *ReconcileCreatorRequest) (*ReconcileCreatorReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	result, err := s.subUc.ReconcileCreatorRevenue(ctx, req.CreatorID, req.Repair)
	if err != nil {
		return nil, err
	}
	return &ReconcileCreatorReply{
		CreatorID:          result.CreatorID,
		SubEarnings:        result.SubEarnings.StringFixed(2),
		SubPlatformShare:   result.SubPlatformShare.StringFixed(2),
		TotalEarnings:      result.TotalEarnings.StringFixed(2),
		TotalPlatformShare: result.TotalPlatformShare.StringFixed(2),
		Consistent:         result.Consistent,
		Repaired:           result.Repaired,
	}, nil
}
