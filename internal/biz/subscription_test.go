package biz

import (
	"context"
	"testing"
	"time"

	"xinyuan_tech/creator-billing-service/internal/constants"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSubscribeToCreator(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Equal(t, constants.SubStatusActive, sub.Status)
	require.True(t, sub.Price.Equal(dec("100.00")))
	require.True(t, sub.CreatorAmount.Equal(dec("70.00")))
	require.True(t, sub.PlatformAmount.Equal(dec("30.00")))
	require.NotNil(t, sub.ExpiresAt)
	wantExpiry := time.Now().UTC().AddDate(0, 0, 30)
	require.WithinDuration(t, wantExpiry, *sub.ExpiresAt, time.Minute)

	// 三条账本条目: 订阅者扣款, 创作者分成, 平台抽成
	subscriber, err := env.ledgerRepo.GetBalance(context.Background(), constants.LedgerOwnerUser, 100)
	require.NoError(t, err)
	require.True(t, subscriber.Credits.Equal(dec("400.00")))

	creator, err := env.ledgerRepo.GetBalance(context.Background(), constants.LedgerOwnerUser, 200)
	require.NoError(t, err)
	require.True(t, creator.Credits.Equal(dec("70.00")))

	platform, err := env.ledgerRepo.GetBalance(context.Background(), constants.LedgerOwnerPlatform, constants.PlatformAccountID)
	require.NoError(t, err)
	require.True(t, platform.Credits.Equal(dec("30.00")))

	require.Len(t, env.ledgerRepo.entries, 3)
	for _, e := range env.ledgerRepo.entries {
		require.Equal(t, constants.RelatedKindCreatorSub, e.Related.Kind)
		require.Equal(t, sub.ID, e.Related.ID)
	}

	// 收入统计与订阅行同事务累加
	profile := env.creatorRepo.creators[200]
	require.True(t, profile.TotalEarnings.Equal(dec("70.00")))
	require.True(t, profile.TotalPlatformShare.Equal(dec("30.00")))
}

func TestSubscribeToCreatorCreatorCommissionRateOverridesDefault(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "15", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("100.00"))

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)
	require.True(t, sub.CreatorAmount.Equal(dec("85.00")))
	require.True(t, sub.PlatformAmount.Equal(dec("15.00")))
}

func TestSubscribeToCreatorZeroRateFallsBackToConfig(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "0", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("100.00"))

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)
	require.True(t, sub.PlatformAmount.Equal(dec("30.00")))
}

func TestSubscribeToCreatorDuplicateActive(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	_, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)

	_, err = env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.Error(t, err)
	require.Len(t, env.ledgerRepo.entries, 3)
}

func TestSubscribeToCreatorUnknownCreator(t *testing.T) {
	env := newBillingEnv()

	_, err := env.subUc.SubscribeToCreator(context.Background(), 100, 999)
	require.Error(t, err)
	require.Empty(t, env.ledgerRepo.entries)
}

func TestSubscribeToCreatorInsufficientBalance(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("10.00"))

	_, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.Error(t, err)

	// 扣款失败后不得再落分成条目
	require.Empty(t, env.ledgerRepo.entriesByReason(constants.LedgerReasonCreatorEarnings))
	require.Empty(t, env.ledgerRepo.entriesByReason(constants.LedgerReasonPlatformCommission))
	require.True(t, env.creatorRepo.creators[200].TotalEarnings.IsZero())
}

func TestRenewCreatorSubscription(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	first, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)

	renewed, err := env.subUc.RenewCreatorSubscription(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Equal(t, first.ID, renewed.ID)
	require.Equal(t, 1, renewed.RenewCount)

	// 从当前到期时间起延长, 剩余时长不被吞掉
	wantExpiry := time.Now().UTC().AddDate(0, 0, 60)
	require.WithinDuration(t, wantExpiry, *renewed.ExpiresAt, time.Minute)

	// 续费金额并入订阅行累计
	require.True(t, renewed.Price.Equal(dec("200.00")))
	require.True(t, renewed.CreatorAmount.Equal(dec("140.00")))
	require.True(t, renewed.PlatformAmount.Equal(dec("60.00")))

	subscriber, err := env.ledgerRepo.GetBalance(context.Background(), constants.LedgerOwnerUser, 100)
	require.NoError(t, err)
	require.True(t, subscriber.Credits.Equal(dec("300.00")))

	profile := env.creatorRepo.creators[200]
	require.True(t, profile.TotalEarnings.Equal(dec("140.00")))
}

func TestRenewReactivatesCancelledSubscription(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	_, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)
	require.NoError(t, env.subUc.CancelSubscription(context.Background(), 100, 200, "changed my mind"))

	renewed, err := env.subUc.RenewCreatorSubscription(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Equal(t, constants.SubStatusActive, renewed.Status)
	require.Nil(t, renewed.CancelledAt)
	require.Empty(t, renewed.CancelReason)
}

func TestRenewWithoutSubscription(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)

	_, err := env.subUc.RenewCreatorSubscription(context.Background(), 100, 200)
	require.Error(t, err)
}

func TestCancelSubscription(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)

	require.NoError(t, env.subUc.CancelSubscription(context.Background(), 100, 200, "too expensive"))
	require.Equal(t, constants.SubStatusCancelled, sub.Status)
	require.False(t, sub.AutoRenew)
	require.NotNil(t, sub.CancelledAt)
	require.Equal(t, "too expensive", sub.CancelReason)

	// 已取消的订阅不能再次取消
	err = env.subUc.CancelSubscription(context.Background(), 100, 200, "again")
	require.Error(t, err)
}

func TestSetAutoRenew(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)

	require.NoError(t, env.subUc.SetAutoRenew(context.Background(), 100, 200, true))
	require.True(t, sub.AutoRenew)

	require.NoError(t, env.subUc.CancelSubscription(context.Background(), 100, 200, "bye"))
	require.Error(t, env.subUc.SetAutoRenew(context.Background(), 100, 200, true))
}

func TestSuspendAndResumeSubscription(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)

	require.NoError(t, env.subUc.SuspendSubscription(context.Background(), sub.ID))
	require.Equal(t, constants.SubStatusSuspended, sub.Status)

	// 已暂停的订阅不能再次暂停
	require.Error(t, env.subUc.SuspendSubscription(context.Background(), sub.ID))

	require.NoError(t, env.subUc.ResumeSubscription(context.Background(), sub.ID))
	require.Equal(t, constants.SubStatusActive, sub.Status)

	require.Error(t, env.subUc.ResumeSubscription(context.Background(), sub.ID))
}

func TestGetSubscriptionStatus(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	status, err := env.subUc.GetSubscriptionStatus(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Equal(t, SubscriptionStatusNone, status)

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)

	status, err = env.subUc.GetSubscriptionStatus(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Equal(t, SubscriptionStatusActive, status)

	// 到期但清扫还没跑到的, 按 expired 返回
	past := time.Now().UTC().Add(-time.Hour)
	sub.ExpiresAt = &past
	status, err = env.subUc.GetSubscriptionStatus(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Equal(t, SubscriptionStatusExpired, status)
}

func TestExpireDueSubscriptions(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	sub, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Hour)
	sub.ExpiresAt = &past

	// 未到期的订阅不受影响
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 101, constants.LedgerStreamCredit, dec("500.00"))
	other, err := env.subUc.SubscribeToCreator(context.Background(), 101, 200)
	require.NoError(t, err)

	// 平台套餐订阅与创作者订阅同批清扫
	planSub := &PlanSubscription{
		SubscriberID: 102,
		PlanID:       "plan_monthly",
		Status:       constants.SubStatusActive,
		Price:        dec("29.90"),
		ExpiresAt:    &past,
	}
	require.NoError(t, env.planSubRepo.CreateSubscription(context.Background(), planSub))

	// 待支付的套餐订阅到期也不清扫, 等回调或订单超时关闭
	pendingPlanSub := &PlanSubscription{
		SubscriberID: 103,
		PlanID:       "plan_monthly",
		Status:       constants.SubStatusPending,
		Price:        dec("29.90"),
		ExpiresAt:    &past,
	}
	require.NoError(t, env.planSubRepo.CreateSubscription(context.Background(), pendingPlanSub))

	expired, skipped, err := env.subUc.expireDueSubscriptions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, expired)
	require.Equal(t, 0, skipped)
	require.Equal(t, constants.SubStatusExpired, sub.Status)
	require.Equal(t, constants.SubStatusActive, other.Status)
	require.Equal(t, constants.SubStatusExpired, planSub.Status)
	require.Equal(t, constants.SubStatusPending, pendingPlanSub.Status)

	// 重复执行是空操作
	expired, skipped, err = env.subUc.expireDueSubscriptions(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, expired)
	require.Equal(t, 0, skipped)
}

func TestReconcileCreatorRevenue(t *testing.T) {
	env := newBillingEnv()
	env.addCreator(200, "100.00", "30", 30)
	env.ledgerRepo.seed(constants.LedgerOwnerUser, 100, constants.LedgerStreamCredit, dec("500.00"))

	_, err := env.subUc.SubscribeToCreator(context.Background(), 100, 200)
	require.NoError(t, err)

	result, err := env.subUc.ReconcileCreatorRevenue(context.Background(), 200, false)
	require.NoError(t, err)
	require.True(t, result.Consistent)
	require.False(t, result.Repaired)

	// 人为制造漂移后 repair 回填
	env.creatorRepo.creators[200].TotalEarnings = dec("999.00")
	result, err = env.subUc.ReconcileCreatorRevenue(context.Background(), 200, true)
	require.NoError(t, err)
	require.False(t, result.Consistent)
	require.True(t, result.Repaired)
	require.True(t, env.creatorRepo.creators[200].TotalEarnings.Equal(dec("70.00")))

	_, err = env.subUc.ReconcileCreatorRevenue(context.Background(), 999, false)
	require.Error(t, err)
}
