package biz

import (
	"context"
	"fmt"
	"sort"
	"time"

	"xinyuan_tech/creator-billing-service/internal/conf"
	"xinyuan_tech/creator-billing-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// 包内测试用的内存仓库。不做回滚: 断言只依赖失败步骤之前的状态

type fakeTx struct{}

func (fakeTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLedgerRepo struct {
	entries  []*LedgerEntry
	balances map[string]decimal.Decimal
	nextID   uint64
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{balances: make(map[string]decimal.Decimal)}
}

func balanceKey(ownerType string, ownerID uint64, stream string) string {
	return fmt.Sprintf("%s/%d/%s", ownerType, ownerID, stream)
}

func (f *fakeLedgerRepo) seed(ownerType string, ownerID uint64, stream string, amount decimal.Decimal) {
	f.balances[balanceKey(ownerType, ownerID, stream)] = amount
}

func (f *fakeLedgerRepo) ApplyEntry(ctx context.Context, entry *LedgerEntry) error {
	key := balanceKey(entry.OwnerType, entry.OwnerID, entry.Stream)
	next := f.balances[key].Add(entry.Amount)
	if entry.OwnerType == constants.LedgerOwnerUser && next.IsNegative() {
		return fmt.Errorf("insufficient balance for %s", key)
	}
	f.balances[key] = next
	f.nextID++
	entry.ID = f.nextID
	entry.CreatedAt = time.Now().UTC()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedgerRepo) GetBalance(ctx context.Context, ownerType string, ownerID uint64) (*Balance, error) {
	return &Balance{
		Credits: f.balances[balanceKey(ownerType, ownerID, constants.LedgerStreamCredit)],
		Points:  f.balances[balanceKey(ownerType, ownerID, constants.LedgerStreamPoint)],
	}, nil
}

func (f *fakeLedgerRepo) SumEntries(ctx context.Context, ownerType string, ownerID uint64, stream string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range f.entries {
		if e.OwnerType == ownerType && e.OwnerID == ownerID && e.Stream == stream {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}

func (f *fakeLedgerRepo) ListEntries(ctx context.Context, ownerType string, ownerID uint64, stream string, page, pageSize int) ([]*LedgerEntry, int, error) {
	var matched []*LedgerEntry
	for _, e := range f.entries {
		if e.OwnerType == ownerType && e.OwnerID == ownerID && e.Stream == stream {
			matched = append(matched, e)
		}
	}
	return matched, len(matched), nil
}

// entriesByReason 按 reason 过滤条目
func (f *fakeLedgerRepo) entriesByReason(reason string) []*LedgerEntry {
	var out []*LedgerEntry
	for _, e := range f.entries {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

type fakeOrderRepo struct {
	orders map[string]*Order
	nextID uint64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*Order)}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, order *Order) error {
	f.nextID++
	order.ID = f.nextID
	f.orders[order.OrderNo] = order
	return nil
}

func (f *fakeOrderRepo) GetOrderByNo(ctx context.Context, orderNo string, forUpdate bool) (*Order, error) {
	return f.orders[orderNo], nil
}

func (f *fakeOrderRepo) UpdateOrder(ctx context.Context, order *Order) error {
	f.orders[order.OrderNo] = order
	return nil
}

func (f *fakeOrderRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*Order, error) {
	var out []*Order
	for _, o := range f.orders {
		if o.Status == constants.OrderStatusPending && o.CreatedAt.Before(before) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePaymentRepo struct {
	payments []*PaymentRecord
	nextID   uint64
}

func (f *fakePaymentRepo) CreatePayment(ctx context.Context, payment *PaymentRecord) error {
	f.nextID++
	payment.ID = f.nextID
	f.payments = append(f.payments, payment)
	return nil
}

func (f *fakePaymentRepo) GetOpenByOrderID(ctx context.Context, orderID uint64) (*PaymentRecord, error) {
	for _, p := range f.payments {
		if p.OrderID == orderID && !p.IsTerminal() {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentRepo) GetByOrderAndTradeNo(ctx context.Context, orderID uint64, tradeNo string) (*PaymentRecord, error) {
	for _, p := range f.payments {
		if p.OrderID == orderID && p.GatewayTradeNo == tradeNo {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentRepo) UpdatePayment(ctx context.Context, payment *PaymentRecord) error {
	return nil
}

func (f *fakePaymentRepo) CancelOpenByOrderID(ctx context.Context, orderID uint64, cancelledAt time.Time) error {
	for _, p := range f.payments {
		if p.OrderID == orderID && !p.IsTerminal() {
			p.Status = constants.PaymentStatusCancelled
			p.CancelledAt = &cancelledAt
		}
	}
	return nil
}

type fakeCreatorRepo struct {
	creators map[uint64]*CreatorProfile
}

func newFakeCreatorRepo() *fakeCreatorRepo {
	return &fakeCreatorRepo{creators: make(map[uint64]*CreatorProfile)}
}

func (f *fakeCreatorRepo) GetCreator(ctx context.Context, creatorID uint64, forUpdate bool) (*CreatorProfile, error) {
	return f.creators[creatorID], nil
}

func (f *fakeCreatorRepo) AddRevenue(ctx context.Context, creatorID uint64, creatorAmount, platformAmount decimal.Decimal) error {
	c := f.creators[creatorID]
	c.TotalEarnings = c.TotalEarnings.Add(creatorAmount)
	c.TotalPlatformShare = c.TotalPlatformShare.Add(platformAmount)
	return nil
}

func (f *fakeCreatorRepo) SetRevenue(ctx context.Context, creatorID uint64, totalEarnings, totalPlatformShare decimal.Decimal) error {
	c := f.creators[creatorID]
	c.TotalEarnings = totalEarnings
	c.TotalPlatformShare = totalPlatformShare
	return nil
}

type fakeCreatorSubRepo struct {
	subs   []*CreatorSubscription
	nextID uint64
}

func (f *fakeCreatorSubRepo) CreateSubscription(ctx context.Context, sub *CreatorSubscription) error {
	f.nextID++
	sub.ID = f.nextID
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeCreatorSubRepo) GetSubscription(ctx context.Context, id uint64, forUpdate bool) (*CreatorSubscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeCreatorSubRepo) GetByPair(ctx context.Context, subscriberID, creatorID uint64) (*CreatorSubscription, error) {
	for i := len(f.subs) - 1; i >= 0; i-- {
		s := f.subs[i]
		if s.SubscriberID == subscriberID && s.CreatorID == creatorID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeCreatorSubRepo) GetActiveByPair(ctx context.Context, subscriberID, creatorID uint64) (*CreatorSubscription, error) {
	for i := len(f.subs) - 1; i >= 0; i-- {
		s := f.subs[i]
		if s.SubscriberID == subscriberID && s.CreatorID == creatorID &&
			(s.Status == constants.SubStatusActive || s.Status == constants.SubStatusTrial) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeCreatorSubRepo) UpdateSubscription(ctx context.Context, sub *CreatorSubscription) error {
	return nil
}

func (f *fakeCreatorSubRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	for _, s := range f.subs {
		if s.Status == constants.SubStatusActive && s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (f *fakeCreatorSubRepo) SumRevenueByCreator(ctx context.Context, creatorID uint64) (decimal.Decimal, decimal.Decimal, error) {
	creatorSum, platformSum := decimal.Zero, decimal.Zero
	for _, s := range f.subs {
		if s.CreatorID == creatorID {
			creatorSum = creatorSum.Add(s.CreatorAmount)
			platformSum = platformSum.Add(s.PlatformAmount)
		}
	}
	return creatorSum, platformSum, nil
}

type fakePlanRepo struct {
	plans map[string]*Plan
}

func (f *fakePlanRepo) CreatePlan(ctx context.Context, plan *Plan) error {
	f.plans[plan.PlanID] = plan
	return nil
}

func (f *fakePlanRepo) ListPlans(ctx context.Context) ([]*Plan, error) {
	var out []*Plan
	for _, p := range f.plans {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePlanRepo) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	return f.plans[planID], nil
}

type fakePlanSubRepo struct {
	subs   []*PlanSubscription
	nextID uint64
}

func (f *fakePlanSubRepo) CreateSubscription(ctx context.Context, sub *PlanSubscription) error {
	f.nextID++
	sub.ID = f.nextID
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakePlanSubRepo) GetSubscription(ctx context.Context, id uint64, forUpdate bool) (*PlanSubscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakePlanSubRepo) GetByUser(ctx context.Context, userID uint64) (*PlanSubscription, error) {
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].SubscriberID == userID {
			return f.subs[i], nil
		}
	}
	return nil, nil
}

func (f *fakePlanSubRepo) UpdateSubscription(ctx context.Context, sub *PlanSubscription) error {
	return nil
}

func (f *fakePlanSubRepo) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	for _, s := range f.subs {
		if s.Status == constants.SubStatusActive && s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

type fakePostRepo struct {
	purchases []*PostPurchase
	nextID    uint64
}

func (f *fakePostRepo) CreatePurchase(ctx context.Context, purchase *PostPurchase) error {
	f.nextID++
	purchase.ID = f.nextID
	f.purchases = append(f.purchases, purchase)
	return nil
}

func (f *fakePostRepo) GetByUserAndPost(ctx context.Context, userID, postID uint64) (*PostPurchase, error) {
	for _, p := range f.purchases {
		if p.UserID == userID && p.PostID == postID {
			return p, nil
		}
	}
	return nil, nil
}

type fakeGateway struct {
	resp *GatewayPaymentResponse
	err  error
}

func (f *fakeGateway) CreatePayment(ctx context.Context, req *GatewayPaymentRequest) (*GatewayPaymentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// billingEnv 一套完整的内存依赖
type billingEnv struct {
	orderRepo   *fakeOrderRepo
	paymentRepo *fakePaymentRepo
	ledgerRepo  *fakeLedgerRepo
	creatorRepo *fakeCreatorRepo
	subRepo     *fakeCreatorSubRepo
	planRepo    *fakePlanRepo
	planSubRepo *fakePlanSubRepo
	postRepo    *fakePostRepo
	gateway     *fakeGateway
	config      *conf.Bootstrap

	subUc *SubscriptionUsecase
	payUc *PaymentUsecase
}

const testGatewaySecret = "test-secret"

func newBillingEnv() *billingEnv {
	env := &billingEnv{
		orderRepo:   newFakeOrderRepo(),
		paymentRepo: &fakePaymentRepo{},
		ledgerRepo:  newFakeLedgerRepo(),
		creatorRepo: newFakeCreatorRepo(),
		subRepo:     &fakeCreatorSubRepo{},
		planRepo:    &fakePlanRepo{plans: make(map[string]*Plan)},
		planSubRepo: &fakePlanSubRepo{},
		postRepo:    &fakePostRepo{},
		gateway:     &fakeGateway{},
		config: &conf.Bootstrap{
			Gateway: &conf.Gateway{
				Name:   "fake",
				Secret: testGatewaySecret,
			},
			Billing: &conf.Billing{
				DefaultCommissionRate: "30",
				RechargePackages: []*conf.RechargePackage{
					{PackageID: "pkg_100", Price: "100.00", Bonus: "15.00"},
					{PackageID: "pkg_10", Price: "10.00", Bonus: "0.00"},
				},
			},
		},
	}

	logger := log.NewStdLogger(discard{})
	env.subUc = NewSubscriptionUsecase(env.subRepo, env.planRepo, env.planSubRepo, env.creatorRepo, env.ledgerRepo, env.config, fakeTx{}, nil, logger)
	env.payUc = NewPaymentUsecase(env.orderRepo, env.paymentRepo, env.ledgerRepo, env.postRepo, env.creatorRepo, env.subUc, env.gateway, env.config, fakeTx{}, nil, logger)
	return env
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (env *billingEnv) addCreator(id uint64, price string, rate string, days int) {
	env.creatorRepo.creators[id] = &CreatorProfile{
		UserID:            id,
		CommissionRate:    decimal.RequireFromString(rate),
		SubscriptionPrice: decimal.RequireFromString(price),
		SubscriptionDays:  days,
	}
}
