package biz

import (
	"context"
	"time"

	"xinyuan_tech/creator-billing-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// LedgerEntry 账本条目, 只追加不修改。正数为入账, 负数为出账。
// 余额和积分是两条独立的流水(Stream), 平台抽成记在 platform 主体下
type LedgerEntry struct {
	ID        uint64
	Stream    string // credit, point
	OwnerType string // user, platform
	OwnerID   uint64
	Amount    decimal.Decimal // 带符号
	Type      string          // earned, spent, deducted, refunded
	Reason    string
	Metadata  map[string]string
	Related   RelatedRef
	CreatedAt time.Time
}

// Balance 某主体的当前余额快照
type Balance struct {
	Credits decimal.Decimal
	Points  decimal.Decimal
}

// LedgerRepo 账本仓库接口。
// 余额字段只允许通过 ApplyEntry 变更: 同一事务内写入条目并等额更新余额行,
// 保证「条目之和 == 余额字段」恒成立
type LedgerRepo interface {
	// ApplyEntry 追加条目并变更余额。用户余额流出账导致余额为负时
	// 返回 ErrCodeInsufficientBalance 业务错误
	ApplyEntry(ctx context.Context, entry *LedgerEntry) error
	GetBalance(ctx context.Context, ownerType string, ownerID uint64) (*Balance, error)
	SumEntries(ctx context.Context, ownerType string, ownerID uint64, stream string) (decimal.Decimal, error)
	ListEntries(ctx context.Context, ownerType string, ownerID uint64, stream string, page, pageSize int) ([]*LedgerEntry, int, error)
}

// LedgerUsecase 账本读取与审计
type LedgerUsecase struct {
	repo LedgerRepo
	log  *log.Helper
}

// NewLedgerUsecase 创建账本用例
func NewLedgerUsecase(repo LedgerRepo, logger log.Logger) *LedgerUsecase {
	return &LedgerUsecase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// GetBalance 查询用户当前余额与积分
func (uc *LedgerUsecase) GetBalance(ctx context.Context, userID uint64) (*Balance, error) {
	return uc.repo.GetBalance(ctx, constants.LedgerOwnerUser, userID)
}

// GetPlatformBalance 查询平台归集账户余额
func (uc *LedgerUsecase) GetPlatformBalance(ctx context.Context) (*Balance, error) {
	return uc.repo.GetBalance(ctx, constants.LedgerOwnerPlatform, constants.PlatformAccountID)
}

// ListEntries 分页查询账本流水
func (uc *LedgerUsecase) ListEntries(ctx context.Context, userID uint64, stream string, page, pageSize int) ([]*LedgerEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > constants.MaxPageSize {
		pageSize = constants.DefaultPageSize
	}
	if stream == "" {
		stream = constants.LedgerStreamCredit
	}
	return uc.repo.ListEntries(ctx, constants.LedgerOwnerUser, userID, stream, page, pageSize)
}

// AuditResult 对账结果
type AuditResult struct {
	Stream    string
	EntrySum  decimal.Decimal
	Balance   decimal.Decimal
	Consistent bool
}

// Audit 核对某主体的流水之和与余额字段是否一致
func (uc *LedgerUsecase) Audit(ctx context.Context, ownerType string, ownerID uint64) ([]*AuditResult, error) {
	balance, err := uc.repo.GetBalance(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}

	results := make([]*AuditResult, 0, 2)
	for _, stream := range []string{constants.LedgerStreamCredit, constants.LedgerStreamPoint} {
		sum, err := uc.repo.SumEntries(ctx, ownerType, ownerID, stream)
		if err != nil {
			return nil, err
		}
		current := balance.Credits
		if stream == constants.LedgerStreamPoint {
			current = balance.Points
		}
		r := &AuditResult{
			Stream:     stream,
			EntrySum:   sum,
			Balance:    current,
			Consistent: sum.Equal(current),
		}
		if !r.Consistent {
			uc.log.Errorf("ledger drift detected: owner=%s/%d stream=%s sum=%s balance=%s",
				ownerType, ownerID, stream, sum, current)
		}
		results = append(results, r)
	}
	return results, nil
}
